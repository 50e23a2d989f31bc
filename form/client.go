// Package form reads and rebuilds Google Forms through the Forms API.
package form

import (
	"context"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"google.golang.org/api/forms/v1"

	"github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/restore"
	"github.com/Jumpaku/go-formsnap/schema"
)

type Client struct {
	service *forms.Service
	log     logger.Logger
}

var _ restore.Mutator = (*Client)(nil)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(service *forms.Service, opts ...Option) *Client {
	c := &Client{service: service, log: logger.NOP}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateForm creates an empty form. The Forms API only accepts a title on
// creation, so the description is written by a follow-up update. When that
// update fails the ID of the created form is returned with the error.
func (c *Client) CreateForm(ctx context.Context, info restore.FormInfo) (formID string, err error) {
	f, err := c.service.Forms.Create(&forms.Form{
		Info: &forms.Info{
			Title:         info.Title,
			DocumentTitle: info.Title,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", errors.NewGoogleAPIError("failed to create form", err)
	}
	c.log.Infon("form created", logger.NewStringField("formId", f.FormId))

	if info.Description != "" {
		err = c.batchUpdate(ctx, f.FormId, "failed to set form description", &forms.Request{
			UpdateFormInfo: &forms.UpdateFormInfoRequest{
				Info:       &forms.Info{Description: info.Description},
				UpdateMask: "description",
			},
		})
		if err != nil {
			return f.FormId, err
		}
	}
	return f.FormId, nil
}

func (c *Client) UpdateInfo(ctx context.Context, formID string, info restore.FormInfo) error {
	return c.batchUpdate(ctx, formID, "failed to update form info", &forms.Request{
		UpdateFormInfo: &forms.UpdateFormInfoRequest{
			Info:       &forms.Info{Title: info.Title, Description: info.Description},
			UpdateMask: "title,description",
		},
	})
}

func (c *Client) ItemCount(ctx context.Context, formID string) (int, error) {
	f, err := c.service.Forms.Get(formID).Fields("items(itemId)").Context(ctx).Do()
	if err != nil {
		return 0, errors.NewGoogleAPIError("failed to get form", err)
	}
	return len(f.Items), nil
}

// ClearItems deletes every item, last to first, in one batch.
func (c *Client) ClearItems(ctx context.Context, formID string) error {
	n, err := c.ItemCount(ctx, formID)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	requests := make([]*forms.Request, 0, n)
	for index := n - 1; index >= 0; index-- {
		requests = append(requests, &forms.Request{
			DeleteItem: &forms.DeleteItemRequest{Location: location(index)},
		})
	}
	if err := c.batchUpdate(ctx, formID, "failed to delete items", requests...); err != nil {
		return err
	}
	c.log.Infon("items cleared", logger.NewStringField("formId", formID), logger.NewIntField("count", int64(n)))
	return nil
}

func (c *Client) AddItem(ctx context.Context, formID string, index int, item schema.Item) error {
	i, err := NewItem(item)
	if err != nil {
		return err
	}
	if item.Type == schema.ItemTypeScale {
		if low, high, clamped := ScaleBounds(item.Metadata); clamped {
			c.log.Warnn("scale bounds out of range, clamped",
				logger.NewStringField("title", item.Title),
				logger.NewIntField("low", low),
				logger.NewIntField("high", high),
			)
		}
	}
	return c.batchUpdate(ctx, formID, "failed to create item", &forms.Request{
		CreateItem: &forms.CreateItemRequest{
			Item:     i.APIItem(),
			Location: location(index),
		},
	})
}

func (c *Client) SetChoices(ctx context.Context, formID string, index int, choices []string) error {
	i := (&Item{}).SetChoiceOptions(choices)
	return c.batchUpdate(ctx, formID, "failed to set choices", &forms.Request{
		UpdateItem: &forms.UpdateItemRequest{
			Item:       i.APIItem(),
			Location:   location(index),
			UpdateMask: i.UpdateMask(),
		},
	})
}

func (c *Client) batchUpdate(ctx context.Context, formID, msg string, requests ...*forms.Request) error {
	_, err := c.service.Forms.BatchUpdate(formID, &forms.BatchUpdateFormRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return errors.NewGoogleAPIError(msg, err)
	}
	return nil
}
