package formsnap_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Jumpaku/go-formsnap"
	formerrors "github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/restore"
	"github.com/Jumpaku/go-formsnap/schema"
	"github.com/Jumpaku/go-formsnap/store"
)

const surveyPayload = `{"title":"Survey","itemCount":2,"items":[` +
	`{"type":"TEXT","title":"Name","required":true},` +
	`{"type":"MULTIPLE_CHOICE","title":"Color","choices":["Red","Blue"],"required":false}]}`

type stubSource struct {
	payload string
	err     error
	forms   []schema.FormRef
}

func (s stubSource) ListLinkedForms(context.Context) ([]schema.FormRef, error) {
	return s.forms, s.err
}

func (s stubSource) FetchSchema(_ context.Context, formID string) (schema.Schema, error) {
	if s.err != nil {
		return schema.Schema{}, s.err
	}
	sc, err := schema.Decode([]byte(s.payload))
	if err != nil {
		return schema.Schema{}, err
	}
	sc.FormID = formID
	return sc, nil
}

func newApp(t *testing.T, fsys afero.Fs, deps formsnap.Deps) *formsnap.App {
	t.Helper()
	if deps.Store == nil {
		deps.Store = store.New(store.NewFileBlobs(fsys), "forms",
			store.WithDefaultPrefix(formsnap.DefaultPrefix),
			store.WithClock(func() time.Time { return time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC) }),
		)
	}
	cfg := formsnap.DefaultConfig()
	cfg.RetryInterval = 0
	return formsnap.New(cfg, deps)
}

func TestFetch_WritesSnapshot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	app := newApp(t, fsys, formsnap.Deps{Source: stubSource{payload: surveyPayload}})

	res, err := app.Fetch(context.Background(), formsnap.FetchRequest{FormID: "1abc", DateStamp: "250116", Prefix: "DHGSVR"})
	require.NoError(t, err)
	require.Equal(t, "forms/DHGSVR250116.json", res.Path)

	data, err := afero.ReadFile(fsys, "forms/DHGSVR250116.json")
	require.NoError(t, err)
	require.Equal(t, int64(2), gjson.GetBytes(data, "itemCount").Int())
	require.Equal(t, `["Red","Blue"]`, gjson.GetBytes(data, "items.1.choices|@ugly").Raw)
	require.Equal(t, "1abc", gjson.GetBytes(data, "formId").String())
}

func TestFetch_Defaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := formsnap.DefaultConfig()
	cfg.FormID = "default-form"
	s := store.New(store.NewFileBlobs(fsys), "forms",
		store.WithClock(func() time.Time { return time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC) }))
	app := formsnap.New(cfg, formsnap.Deps{Source: stubSource{payload: surveyPayload}, Store: s})

	res, err := app.Fetch(context.Background(), formsnap.FetchRequest{})
	require.NoError(t, err)
	require.Equal(t, "forms/DHGSVR250309.json", res.Path)
	require.Equal(t, "default-form", res.Schema.FormID)

	res, err = app.Fetch(context.Background(), formsnap.FetchRequest{Output: "out/custom.json"})
	require.NoError(t, err)
	require.Equal(t, "out/custom.json", res.Path)
	exists, err := afero.Exists(fsys, "out/custom.json")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestFetch_Errors(t *testing.T) {
	cases := []struct {
		name     string
		source   formsnap.Source
		req      formsnap.FetchRequest
		want     error
		wantCode int
	}{
		{
			name:     "error-payload",
			source:   stubSource{err: &formerrors.RemoteSchemaError{Message: "not found"}},
			req:      formsnap.FetchRequest{FormID: "1abc", DateStamp: "250116"},
			want:     formerrors.ErrRemoteSchema,
			wantCode: 1,
		},
		{
			name:     "unavailable",
			source:   stubSource{err: formerrors.NewRemoteUnavailable("get", fmt.Errorf("refused"))},
			req:      formsnap.FetchRequest{FormID: "1abc"},
			want:     formerrors.ErrRemoteUnavailable,
			wantCode: 1,
		},
		{
			name:     "no-form-id",
			source:   stubSource{payload: surveyPayload},
			req:      formsnap.FetchRequest{},
			want:     formsnap.ErrUsage,
			wantCode: 2,
		},
		{
			name:     "bad-date",
			source:   stubSource{payload: surveyPayload},
			req:      formsnap.FetchRequest{FormID: "1abc", DateStamp: "2025-01-16"},
			want:     formsnap.ErrUsage,
			wantCode: 2,
		},
		{
			name:     "no-source",
			req:      formsnap.FetchRequest{FormID: "1abc"},
			want:     formerrors.ErrUnsupported,
			wantCode: 1,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			app := newApp(t, fsys, formsnap.Deps{Source: c.source})
			_, err := app.Fetch(context.Background(), c.req)
			require.ErrorIs(t, err, c.want)
			require.Equal(t, c.wantCode, formsnap.ExitCode(err))

			exists, _ := afero.DirExists(fsys, "forms")
			require.False(t, exists, "nothing must be written on failure")
		})
	}
}

func TestList(t *testing.T) {
	refs := []schema.FormRef{{SheetName: "Sheet1", FormID: "1abc", FormURL: ""}}
	app := newApp(t, afero.NewMemMapFs(), formsnap.Deps{Source: stubSource{forms: refs}})
	got, err := app.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, refs, got)

	_, err = newApp(t, afero.NewMemMapFs(), formsnap.Deps{}).List(context.Background())
	require.ErrorIs(t, err, formerrors.ErrUnsupported)
}

type recordingMutator struct {
	added []string
	fail  string
}

func (m *recordingMutator) CreateForm(context.Context, restore.FormInfo) (string, error) {
	return "restored", nil
}

func (m *recordingMutator) UpdateInfo(context.Context, string, restore.FormInfo) error { return nil }

func (m *recordingMutator) ItemCount(context.Context, string) (int, error) { return 0, nil }

func (m *recordingMutator) ClearItems(context.Context, string) error { return nil }

func (m *recordingMutator) AddItem(_ context.Context, _ string, _ int, item schema.Item) error {
	if item.Title == m.fail {
		return formerrors.NewAPIError("rejected", nil)
	}
	m.added = append(m.added, item.Title)
	return nil
}

func (m *recordingMutator) SetChoices(context.Context, string, int, []string) error { return nil }

func TestInspectAndRestore(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	m := &recordingMutator{fail: "Name"}
	app := newApp(t, fsys, formsnap.Deps{Source: stubSource{payload: surveyPayload}, Mutator: m})

	res, err := app.Fetch(ctx, formsnap.FetchRequest{FormID: "1abc", DateStamp: "250116"})
	require.NoError(t, err)

	inspected, err := app.Inspect(ctx, res.Path)
	require.NoError(t, err)
	require.Equal(t, 2, inspected.ItemCount)

	report, err := app.Restore(ctx, formsnap.RestoreRequest{Path: res.Path})
	require.NoError(t, err)
	require.Equal(t, "restored", report.TargetFormID)
	require.True(t, report.Created)
	require.Equal(t, []int{1}, report.Succeeded)
	require.Equal(t, []int{0}, report.FailedIndexes())
	require.Equal(t, 0, formsnap.ExitCode(err))
	require.Equal(t, []string{"Color"}, m.added)

	_, err = app.Restore(ctx, formsnap.RestoreRequest{Path: res.Path, TargetFormID: "1abc"})
	require.ErrorIs(t, err, formerrors.ErrInvalidTarget)

	_, err = app.Restore(ctx, formsnap.RestoreRequest{Path: "forms/none.json"})
	require.ErrorIs(t, err, formerrors.ErrSnapshotNotFound)
	require.Equal(t, 1, formsnap.ExitCode(err))

	_, err = app.Restore(ctx, formsnap.RestoreRequest{Path: res.Path, Policy: "merge"})
	require.ErrorIs(t, err, formsnap.ErrUsage)
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	app := newApp(t, afero.NewMemMapFs(), formsnap.Deps{Source: stubSource{payload: surveyPayload}})
	for _, d := range []string{"250117", "250116"} {
		_, err := app.Fetch(ctx, formsnap.FetchRequest{FormID: "1abc", DateStamp: d})
		require.NoError(t, err)
	}
	entries, err := app.Snapshots(ctx, "DHGSVR")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "DHGSVR250116.json", entries[0].Name)
	require.Equal(t, "DHGSVR250117.json", entries[1].Name)
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*formsnap.Config)
		wantErr bool
	}{
		{"defaults", func(*formsnap.Config) {}, false},
		{"forms-api", func(c *formsnap.Config) { c.Source = formsnap.SourceFormsAPI }, false},
		{"unknown-source", func(c *formsnap.Config) { c.Source = "ftp" }, true},
		{"drive-without-folder", func(c *formsnap.Config) { c.Store = formsnap.StoreDrive }, true},
		{"drive", func(c *formsnap.Config) { c.Store = formsnap.StoreDrive; c.DriveFolder = "root-id" }, false},
		{"unknown-policy", func(c *formsnap.Config) { c.Policy = "merge" }, true},
		{"negative-retries", func(c *formsnap.Config) { c.MaxRetries = -1 }, true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			cfg := formsnap.DefaultConfig()
			c.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
			if err != nil && formsnap.ExitCode(err) != 2 {
				t.Fatalf("ExitCode(%v) = %d, want 2", err, formsnap.ExitCode(err))
			}
		})
	}
}
