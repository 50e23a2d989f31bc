package restore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	formerrors "github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/restore"
	"github.com/Jumpaku/go-formsnap/schema"
)

type formItem struct {
	Type     schema.ItemType
	Title    string
	Required bool
	Choices  []string
}

type fakeForm struct {
	Info  restore.FormInfo
	Items []formItem
}

// fakeMutator keeps forms in memory. addErr and choicesErr are consulted with
// the title of the item and the number of calls made for it so far.
type fakeMutator struct {
	forms      map[string]*fakeForm
	nextID     int
	calls      []string
	addErr     func(title string, attempt int) error
	choicesErr func(location int, attempt int) error
	onAdd      func(title string)
	infoErr    func(attempt int) error
	infoCalls  int
	addCalls   map[string]int
	setCalls   map[int]int
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{forms: map[string]*fakeForm{}, addCalls: map[string]int{}, setCalls: map[int]int{}}
}

func (m *fakeMutator) CreateForm(_ context.Context, info restore.FormInfo) (string, error) {
	m.nextID++
	id := fmt.Sprintf("created-%d", m.nextID)
	m.forms[id] = &fakeForm{Info: restore.FormInfo{Title: info.Title}}
	m.calls = append(m.calls, "create")
	if err := m.writeInfo(id, info); err != nil {
		return id, err
	}
	return id, nil
}

func (m *fakeMutator) writeInfo(formID string, info restore.FormInfo) error {
	m.infoCalls++
	if m.infoErr != nil {
		if err := m.infoErr(m.infoCalls); err != nil {
			return err
		}
	}
	m.forms[formID].Info = info
	return nil
}

func (m *fakeMutator) UpdateInfo(_ context.Context, formID string, info restore.FormInfo) error {
	if _, ok := m.forms[formID]; !ok {
		return formerrors.NewAPIError("no form "+formID, nil)
	}
	m.calls = append(m.calls, "update-info")
	return m.writeInfo(formID, info)
}

func (m *fakeMutator) ItemCount(_ context.Context, formID string) (int, error) {
	f, ok := m.forms[formID]
	if !ok {
		return 0, formerrors.NewAPIError("no form "+formID, nil)
	}
	m.calls = append(m.calls, "count")
	return len(f.Items), nil
}

func (m *fakeMutator) ClearItems(_ context.Context, formID string) error {
	f, ok := m.forms[formID]
	if !ok {
		return formerrors.NewAPIError("no form "+formID, nil)
	}
	f.Items = nil
	m.calls = append(m.calls, "clear")
	return nil
}

func (m *fakeMutator) AddItem(_ context.Context, formID string, location int, item schema.Item) error {
	f := m.forms[formID]
	m.addCalls[item.Title]++
	m.calls = append(m.calls, "add:"+item.Title)
	if m.onAdd != nil {
		m.onAdd(item.Title)
	}
	if m.addErr != nil {
		if err := m.addErr(item.Title, m.addCalls[item.Title]); err != nil {
			return err
		}
	}
	if location < 0 || location > len(f.Items) {
		return formerrors.NewAPIError(fmt.Sprintf("location %d out of range", location), nil)
	}
	if len(item.Choices) > 0 {
		return formerrors.NewAPIError("choices must be set separately", nil)
	}
	added := formItem{Type: item.Type, Title: item.Title, Required: item.Required}
	f.Items = append(f.Items[:location], append([]formItem{added}, f.Items[location:]...)...)
	return nil
}

func (m *fakeMutator) SetChoices(_ context.Context, formID string, location int, choices []string) error {
	f := m.forms[formID]
	m.setCalls[location]++
	m.calls = append(m.calls, fmt.Sprintf("choices:%d", location))
	if m.choicesErr != nil {
		if err := m.choicesErr(location, m.setCalls[location]); err != nil {
			return err
		}
	}
	f.Items[location].Choices = append([]string{}, choices...)
	return nil
}

func newEngine(m restore.Mutator, opts ...restore.Option) *restore.Engine {
	opts = append([]restore.Option{
		restore.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}, opts...)
	return restore.New(m, opts...)
}

func fiveItems() schema.Schema {
	return schema.Normalize(schema.Schema{
		Title:    "Survey",
		FormID:   "source-form",
		Metadata: map[string]any{"description": "Weekly"},
		Items: []schema.Item{
			{Type: schema.ItemTypeText, Title: "Name", Required: true},
			{Type: schema.ItemTypeMultipleChoice, Title: "Color", Choices: []string{"Red", "Blue"}},
			{Type: schema.ItemTypeDate, Title: "Birthday"},
			{Type: schema.ItemTypePageBreak, Title: "Part 2"},
			{Type: schema.ItemTypeParagraphText, Title: "Comments"},
		},
	})
}

func TestRestore_CreatesForm(t *testing.T) {
	m := newFakeMutator()
	report, err := newEngine(m).Restore(context.Background(), fiveItems(), restore.Target{})
	require.NoError(t, err)

	require.True(t, report.Created)
	require.Equal(t, "created-1", report.TargetFormID)
	require.Equal(t, []int{0, 1, 2, 3, 4}, report.Succeeded)
	require.Empty(t, report.Failed)
	require.False(t, report.Partial())

	got := m.forms["created-1"]
	want := &fakeForm{
		Info: restore.FormInfo{Title: "Survey", Description: "Weekly"},
		Items: []formItem{
			{Type: schema.ItemTypeText, Title: "Name", Required: true},
			{Type: schema.ItemTypeMultipleChoice, Title: "Color", Choices: []string{"Red", "Blue"}},
			{Type: schema.ItemTypeDate, Title: "Birthday"},
			{Type: schema.ItemTypePageBreak, Title: "Part 2"},
			{Type: schema.ItemTypeParagraphText, Title: "Comments"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored form mismatch (-want +got):\n%s", diff)
	}
}

func TestRestore_CreateFormInfoFails(t *testing.T) {
	cases := []struct {
		name      string
		failures  int
		wantErr   bool
		wantCalls []string
	}{
		{"recovers-with-update", 2, false, []string{"create", "update-info"}},
		{"exhausted", 10, true, []string{"create", "update-info", "update-info", "update-info", "update-info"}},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			m := newFakeMutator()
			m.infoErr = func(attempt int) error {
				if attempt <= c.failures {
					return formerrors.NewRemoteUnavailable("update form info", fmt.Errorf("503"))
				}
				return nil
			}
			report, err := newEngine(m).Restore(context.Background(), fiveItems(), restore.Target{})

			require.Len(t, m.forms, 1)
			require.True(t, report.Created)
			require.Equal(t, "created-1", report.TargetFormID)
			if c.wantErr {
				require.ErrorIs(t, err, formerrors.ErrRemoteUnavailable)
				require.Equal(t, c.wantCalls, m.calls)
				require.Empty(t, report.Succeeded)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.wantCalls, m.calls[:len(c.wantCalls)])
			require.Equal(t, restore.FormInfo{Title: "Survey", Description: "Weekly"}, m.forms["created-1"].Info)
			require.Equal(t, []int{0, 1, 2, 3, 4}, report.Succeeded)
		})
	}
}

func TestRestore_PartialFailure(t *testing.T) {
	m := newFakeMutator()
	m.addErr = func(title string, _ int) error {
		if title == "Birthday" {
			return formerrors.NewAPIError("invalid item", nil)
		}
		return nil
	}
	report, err := newEngine(m).Restore(context.Background(), fiveItems(), restore.Target{})
	require.NoError(t, err)

	require.True(t, report.Created)
	require.Equal(t, []int{0, 1, 3, 4}, report.Succeeded)
	require.Equal(t, []int{2}, report.FailedIndexes())
	require.True(t, report.Partial())
	require.Equal(t, 1, m.addCalls["Birthday"], "permanent failures are not retried")

	var itemErr *formerrors.RestoreItemError
	require.True(t, errors.As(report.Failed[0].Err, &itemErr))
	require.Equal(t, 2, itemErr.Index)
	require.ErrorIs(t, report.Failed[0].Err, formerrors.ErrRestoreItemFailed)
	require.ErrorIs(t, report.Failed[0].Err, formerrors.ErrAPIError)

	titles := []string{}
	for _, it := range m.forms[report.TargetFormID].Items {
		titles = append(titles, it.Title)
	}
	require.Equal(t, []string{"Name", "Color", "Part 2", "Comments"}, titles)
}

func TestRestore_Retry(t *testing.T) {
	cases := []struct {
		name       string
		maxRetries int
		failures   int
		wantCalls  int
		wantFailed bool
	}{
		{"recovers", 3, 2, 3, false},
		{"exhausted", 3, 10, 4, true},
		{"no-retries", 0, 1, 1, true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			m := newFakeMutator()
			m.addErr = func(title string, attempt int) error {
				if title == "Name" && attempt <= c.failures {
					return formerrors.NewRemoteUnavailable("add item", fmt.Errorf("503"))
				}
				return nil
			}
			report, err := newEngine(m, restore.WithMaxRetries(c.maxRetries)).
				Restore(context.Background(), fiveItems(), restore.Target{})
			require.NoError(t, err)
			require.Equal(t, c.wantCalls, m.addCalls["Name"])
			if c.wantFailed {
				require.Equal(t, []int{0}, report.FailedIndexes())
				require.ErrorIs(t, report.Failed[0].Err, formerrors.ErrRemoteUnavailable)
			} else {
				require.Empty(t, report.Failed)
				require.Contains(t, report.Succeeded, 0)
			}
		})
	}
}

func TestRestore_SetChoicesFailureKeepsLocation(t *testing.T) {
	m := newFakeMutator()
	m.choicesErr = func(int, int) error { return formerrors.NewAPIError("bad option", nil) }
	report, err := newEngine(m).Restore(context.Background(), fiveItems(), restore.Target{})
	require.NoError(t, err)

	require.Equal(t, []int{1}, report.FailedIndexes())
	require.Equal(t, []int{0, 2, 3, 4}, report.Succeeded)
	items := m.forms[report.TargetFormID].Items
	require.Len(t, items, 5)
	require.Equal(t, "Comments", items[4].Title)
}

func TestRestore_UnknownAndEmptyChoices(t *testing.T) {
	s := schema.Normalize(schema.Schema{
		Title: "Mixed",
		Items: []schema.Item{
			{Type: "GRID", Title: "Grid"},
			{Type: schema.ItemTypeDropdown, Title: "Pick"},
			{Type: schema.ItemTypeScale, Title: "Rate", Required: true},
		},
	})
	m := newFakeMutator()
	report, err := newEngine(m).Restore(context.Background(), s, restore.Target{})
	require.NoError(t, err)

	require.Equal(t, []int{0}, report.Skipped)
	require.Equal(t, []int{1, 2}, report.Succeeded)
	require.Len(t, report.Warnings, 2)
	require.Contains(t, report.Warnings[0], "GRID")
	require.NotContains(t, m.calls, "choices:0")

	items := m.forms[report.TargetFormID].Items
	require.Equal(t, "Pick", items[0].Title)
	require.Equal(t, "Rate", items[1].Title)
	require.True(t, items[1].Required)
}

func TestRestore_ExistingTarget(t *testing.T) {
	cases := []struct {
		name      string
		policy    restore.Policy
		wantCalls []string
		wantItems []string
	}{
		{
			name:      "overwrite",
			policy:    restore.PolicyOverwrite,
			wantCalls: []string{"update-info", "clear", "add:A", "add:B"},
			wantItems: []string{"A", "B"},
		},
		{
			name:      "default-is-overwrite",
			policy:    "",
			wantCalls: []string{"update-info", "clear", "add:A", "add:B"},
			wantItems: []string{"A", "B"},
		},
		{
			name:      "append",
			policy:    restore.PolicyAppend,
			wantCalls: []string{"count", "add:A", "add:B"},
			wantItems: []string{"old-1", "old-2", "A", "B"},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			m := newFakeMutator()
			m.forms["target"] = &fakeForm{
				Info:  restore.FormInfo{Title: "Old"},
				Items: []formItem{{Type: schema.ItemTypeText, Title: "old-1"}, {Type: schema.ItemTypeText, Title: "old-2"}},
			}
			s := schema.Normalize(schema.Schema{
				Title:  "New",
				FormID: "source",
				Items: []schema.Item{
					{Type: schema.ItemTypeText, Title: "A"},
					{Type: schema.ItemTypeTime, Title: "B"},
				},
			})
			report, err := newEngine(m).Restore(context.Background(), s, restore.Target{FormID: "target", Policy: c.policy})
			require.NoError(t, err)
			require.False(t, report.Created)
			require.Equal(t, "target", report.TargetFormID)
			require.Equal(t, c.wantCalls, m.calls)

			var titles []string
			for _, it := range m.forms["target"].Items {
				titles = append(titles, it.Title)
			}
			require.Equal(t, c.wantItems, titles)
		})
	}
}

func TestRestore_InvalidTarget(t *testing.T) {
	cases := []struct {
		name   string
		target restore.Target
	}{
		{"source-form", restore.Target{FormID: "source-form"}},
		{"unknown-policy", restore.Target{FormID: "other", Policy: "merge"}},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			m := newFakeMutator()
			_, err := newEngine(m).Restore(context.Background(), fiveItems(), c.target)
			require.ErrorIs(t, err, formerrors.ErrInvalidTarget)
			require.Empty(t, m.calls)
		})
	}
}

func TestRestore_TargetResolutionFails(t *testing.T) {
	m := newFakeMutator()
	_, err := newEngine(m).Restore(context.Background(), fiveItems(), restore.Target{FormID: "missing"})
	require.ErrorIs(t, err, formerrors.ErrAPIError)
	require.Empty(t, m.addCalls)
}

func TestRestore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newFakeMutator()
	m.onAdd = func(title string) {
		if title == "Color" {
			cancel()
		}
	}
	report, err := newEngine(m).Restore(ctx, fiveItems(), restore.Target{})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, report.Interrupted)
	require.True(t, report.Created)
	require.Equal(t, []int{0, 1}, report.Succeeded)
	require.NotContains(t, m.addCalls, "Birthday")
}

func TestRestore_DoesNotModifySchema(t *testing.T) {
	s := fiveItems()
	before := s.Clone()
	_, err := newEngine(newFakeMutator()).Restore(context.Background(), s, restore.Target{})
	require.NoError(t, err)
	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("schema modified (-before +after):\n%s", diff)
	}
}

func TestParsePolicy(t *testing.T) {
	cases := []struct {
		in      string
		want    restore.Policy
		wantErr bool
	}{
		{"", restore.PolicyOverwrite, false},
		{"overwrite", restore.PolicyOverwrite, false},
		{"append", restore.PolicyAppend, false},
		{"merge", "", true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			got, err := restore.ParsePolicy(c.in)
			if (err != nil) != c.wantErr {
				t.Fatalf("ParsePolicy(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			}
			if got != c.want {
				t.Fatalf("ParsePolicy(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}
