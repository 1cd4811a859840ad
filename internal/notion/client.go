// Package notion is the document-workspace source: it fetches pages and
// block trees through the Notion API, renders blocks to Markdown, and
// normalizes page metadata into the shared document model.
package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
)

// API is the slice of the Notion client the sync pipeline needs. The
// jomei client satisfies it through Client; tests supply fakes.
type API interface {
	GetPage(ctx context.Context, pageID string) (*notionapi.Page, error)
	GetBlocks(ctx context.Context, blockID string) ([]notionapi.Block, error)
	QueryPagesEditedBetween(ctx context.Context, databaseID string, start, end time.Time) ([]*notionapi.Page, error)
}

type Client struct {
	api *notionapi.Client
}

func NewClient(token string) *Client {
	return &Client{api: notionapi.NewClient(notionapi.Token(token))}
}

func (c *Client) GetPage(ctx context.Context, pageID string) (*notionapi.Page, error) {
	page, err := c.api.Page.Get(ctx, notionapi.PageID(pageID))
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", pageID, err)
	}
	return page, nil
}

// GetBlocks returns the full child block list of one block, following
// pagination. Nested children are fetched lazily by the renderer.
func (c *Client) GetBlocks(ctx context.Context, blockID string) ([]notionapi.Block, error) {
	var blocks []notionapi.Block
	cursor := notionapi.Cursor("")
	for {
		resp, err := c.api.Block.GetChildren(ctx, notionapi.BlockID(blockID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return nil, fmt.Errorf("get block children %s: %w", blockID, err)
		}
		blocks = append(blocks, resp.Results...)
		if !resp.HasMore {
			return blocks, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// QueryPagesEditedBetween lists database pages whose last edit falls in
// [start, end), following pagination.
func (c *Client) QueryPagesEditedBetween(ctx context.Context, databaseID string, start, end time.Time) ([]*notionapi.Page, error) {
	startDate := notionapi.Date(start)
	endDate := notionapi.Date(end)

	var pages []*notionapi.Page
	cursor := notionapi.Cursor("")
	for {
		resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), &notionapi.DatabaseQueryRequest{
			Filter: &notionapi.TimestampFilter{
				Timestamp: notionapi.TimestampLastEdited,
				LastEditedTime: &notionapi.DateFilterCondition{
					OnOrAfter: &startDate,
					Before:    &endDate,
				},
			},
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return nil, fmt.Errorf("query database %s: %w", databaseID, err)
		}
		for i := range resp.Results {
			pages = append(pages, &resp.Results[i])
		}
		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
