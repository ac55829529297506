package ado

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/storyforge/internal/workitem"
)

// MaxBatch is the most ids hydrated from a single WIQL result.
const MaxBatch = 200

// Field sets requested when hydrating WIQL results.
var (
	// ListFields backs the cache and parent pickers.
	ListFields = []string{
		FieldID, FieldTitle, FieldType, FieldState, FieldParent, FieldAssignedTo,
		FieldCreatedDate, FieldIterationPath, FieldAreaPath, FieldDescription,
	}
	// DetailFields backs the single work item view.
	DetailFields = []string{
		FieldID, FieldTitle, FieldType, FieldState, FieldParent, FieldAssignedTo,
		FieldCreatedDate, FieldCreatedBy, FieldChangedDate, FieldChangedBy,
		FieldIterationPath, FieldAreaPath, FieldDescription, FieldTags,
		FieldPriority, FieldStartDate, FieldTargetDate,
	}
	// FeatureFields backs the stage gate, roadmap and visibility views.
	FeatureFields = []string{
		FieldID, FieldTitle, FieldType, FieldState, FieldDescription, FieldAssignedTo,
		FieldCreatedDate, FieldChangedDate, FieldParent, FieldPriority,
		FieldStartDate, FieldTargetDate,
	}
	// EpicFields backs the roadmap swimlanes.
	EpicFields = []string{FieldID, FieldTitle, FieldState, FieldStartDate, FieldTargetDate}
)

// TestConnection fetches the configured project.
func (c *Client) TestConnection(ctx context.Context) (*Project, error) {
	var p Project
	path := fmt.Sprintf("/_apis/projects/%s?api-version=%s", url.PathEscape(c.project), apiVersion)
	if err := c.get(ctx, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// WorkItemTypes lists the names of the work item types defined in the project.
func (c *Client) WorkItemTypes(ctx context.Context) ([]string, error) {
	var resp listResponse[WorkItemType]
	if err := c.get(ctx, c.projectPath("/_apis/wit/workitemtypes"), &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Value))
	for _, t := range resp.Value {
		names = append(names, t.Name)
	}
	return names, nil
}

// QueryWorkItems runs a WIQL query and hydrates the first MaxBatch matches.
// With no fields every field of each item is returned.
func (c *Client) QueryWorkItems(ctx context.Context, wiql string, fields []string) ([]workitem.WorkItem, error) {
	var resp wiqlResponse
	body := map[string]string{"query": wiql}
	if err := c.post(ctx, c.projectPath("/_apis/wit/wiql"), body, &resp); err != nil {
		return nil, err
	}
	ids := resp.ids()
	if len(ids) > MaxBatch {
		ids = ids[:MaxBatch]
	}
	return c.WorkItemsByID(ctx, ids, fields)
}

// WorkItemsByID hydrates ids in one batch request.
func (c *Client) WorkItemsByID(ctx context.Context, ids []int, fields []string) ([]workitem.WorkItem, error) {
	if len(ids) == 0 {
		return []workitem.WorkItem{}, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(parts, ","))
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	q.Set("api-version", apiVersion)

	var resp listResponse[RawWorkItem]
	path := fmt.Sprintf("/%s/_apis/wit/workitems?%s", url.PathEscape(c.project), q.Encode())
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return ToWorkItems(resp.Value), nil
}

// RecentWorkItems returns open items of the configured types created in the
// last six months. It feeds the local cache.
func (c *Client) RecentWorkItems(ctx context.Context) ([]workitem.WorkItem, error) {
	since := time.Now().AddDate(0, -6, 0).Format("2006-01-02")
	var b strings.Builder
	b.WriteString("SELECT [System.Id], [System.Title], [System.WorkItemType], [System.State], [System.CreatedDate] FROM WorkItems")
	fmt.Fprintf(&b, " WHERE [System.CreatedDate] >= '%s'", since)
	b.WriteString(" AND [System.State] NOT IN ('Closed', 'Removed', 'Done')")
	c.writeTypeFilter(&b, "[System.WorkItemType]")
	c.writeAreaFilter(&b)
	b.WriteString(" ORDER BY [System.CreatedDate] DESC")
	return c.QueryWorkItems(ctx, b.String(), ListFields)
}

// EpicsAndFeatures returns open epics and features for parent selection.
// Types missing from the project are skipped.
func (c *Client) EpicsAndFeatures(ctx context.Context) ([]workitem.WorkItem, error) {
	var parents []string
	for _, t := range c.types {
		if t == workitem.TypeEpic || t == workitem.TypeFeature {
			parents = append(parents, t)
		}
	}
	if len(parents) == 0 {
		return []workitem.WorkItem{}, nil
	}
	var b strings.Builder
	b.WriteString("SELECT [System.Id], [System.Title], [System.WorkItemType], [System.State] FROM WorkItems")
	fmt.Fprintf(&b, " WHERE [System.WorkItemType] IN (%s)", quoteList(parents))
	b.WriteString(" AND [System.State] NOT IN ('Closed', 'Removed')")
	c.writeAreaFilter(&b)
	b.WriteString(" ORDER BY [System.CreatedDate] DESC")
	return c.QueryWorkItems(ctx, b.String(), ListFields)
}

// AllActiveWorkItems returns every open item of the configured types for the
// backlog. All fields are hydrated so effort is available for roll-ups.
func (c *Client) AllActiveWorkItems(ctx context.Context) ([]workitem.WorkItem, error) {
	var b strings.Builder
	b.WriteString("SELECT [System.Id], [System.Title], [System.WorkItemType], [System.State] FROM WorkItems")
	b.WriteString(" WHERE [System.State] NOT IN ('Closed', 'Removed')")
	c.writeTypeFilter(&b, "[System.WorkItemType]")
	c.writeAreaFilter(&b)
	b.WriteString(" ORDER BY [System.WorkItemType] DESC, [System.CreatedDate] DESC")
	return c.QueryWorkItems(ctx, b.String(), nil)
}

// FeatureQuery narrows Features.
type FeatureQuery struct {
	// ExcludeStates are left out of the result.
	ExcludeStates []string
	// IgnoreArea skips the configured area path filter.
	IgnoreArea bool
	// OrderBy is a WIQL ORDER BY clause body, e.g. "[System.Title] ASC".
	OrderBy string
}

// Features returns Feature work items regardless of the configured types.
func (c *Client) Features(ctx context.Context, q FeatureQuery) ([]workitem.WorkItem, error) {
	var b strings.Builder
	b.WriteString("SELECT [System.Id], [System.Title], [System.State] FROM WorkItems")
	fmt.Fprintf(&b, " WHERE [System.WorkItemType] = '%s'", workitem.TypeFeature)
	if len(q.ExcludeStates) > 0 {
		fmt.Fprintf(&b, " AND [System.State] NOT IN (%s)", quoteList(q.ExcludeStates))
	}
	if !q.IgnoreArea {
		c.writeAreaFilter(&b)
	}
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY " + q.OrderBy)
	}
	return c.QueryWorkItems(ctx, b.String(), FeatureFields)
}

// WorkItem fetches one item with DetailFields.
func (c *Client) WorkItem(ctx context.Context, id int) (*workitem.WorkItem, error) {
	q := url.Values{}
	q.Set("fields", strings.Join(DetailFields, ","))
	q.Set("api-version", apiVersion)

	var raw RawWorkItem
	path := fmt.Sprintf("/%s/_apis/wit/workitems/%d?%s", url.PathEscape(c.project), id, q.Encode())
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	w := ToWorkItem(raw)
	return &w, nil
}

// ChildWorkItems returns the direct hierarchy children of parentID.
func (c *Client) ChildWorkItems(ctx context.Context, parentID int) ([]workitem.WorkItem, error) {
	var b strings.Builder
	b.WriteString("SELECT [System.Id], [System.Title], [System.WorkItemType], [System.State] FROM WorkItemLinks")
	fmt.Fprintf(&b, " WHERE [Source].[System.Id] = %d", parentID)
	b.WriteString(" AND [System.Links.LinkType] = 'System.LinkTypes.Hierarchy-Forward'")
	c.writeTypeFilter(&b, "[Target].[System.WorkItemType]")
	b.WriteString(" MODE (MustContain)")
	return c.QueryWorkItems(ctx, b.String(), nil)
}

// Epics hydrates the given epic ids with EpicFields.
func (c *Client) Epics(ctx context.Context, ids []int) ([]workitem.WorkItem, error) {
	if len(ids) > MaxBatch {
		ids = ids[:MaxBatch]
	}
	return c.WorkItemsByID(ctx, ids, EpicFields)
}

// CreateWorkItem creates an item of the given type from JSON-Patch operations.
func (c *Client) CreateWorkItem(ctx context.Context, itemType string, ops []workitem.PatchOperation) (*workitem.WorkItem, error) {
	var raw RawWorkItem
	path := fmt.Sprintf("/%s/_apis/wit/workitems/$%s?api-version=%s",
		url.PathEscape(c.project), url.PathEscape(itemType), createAPIVersion)
	if err := c.do(ctx, http.MethodPost, path, jsonPatch, ops, &raw); err != nil {
		return nil, err
	}
	w := ToWorkItem(raw)
	return &w, nil
}

// UpdateWorkItem applies JSON-Patch operations to an existing item.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, ops []workitem.PatchOperation) (*workitem.WorkItem, error) {
	var raw RawWorkItem
	path := fmt.Sprintf("/%s/_apis/wit/workitems/%d?api-version=%s", url.PathEscape(c.project), id, apiVersion)
	if err := c.do(ctx, http.MethodPatch, path, jsonPatch, ops, &raw); err != nil {
		return nil, err
	}
	w := ToWorkItem(raw)
	return &w, nil
}

func (c *Client) projectPath(p string) string {
	return fmt.Sprintf("/%s%s?api-version=%s", url.PathEscape(c.project), p, apiVersion)
}

func (c *Client) writeAreaFilter(b *strings.Builder) {
	if c.areaPath != "" {
		fmt.Fprintf(b, " AND [System.AreaPath] UNDER '%s'", escapeWIQL(c.areaPath))
	}
}

// writeTypeFilter limits field to the configured types. With none configured
// every type matches.
func (c *Client) writeTypeFilter(b *strings.Builder, field string) {
	if len(c.types) > 0 {
		fmt.Fprintf(b, " AND %s IN (%s)", field, quoteList(c.types))
	}
}

// escapeWIQL doubles single quotes inside a WIQL string literal.
func escapeWIQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + escapeWIQL(v) + "'"
	}
	return strings.Join(quoted, ", ")
}
