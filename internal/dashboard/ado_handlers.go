package dashboard

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/cache"
	"github.com/zulandar/storyforge/internal/fieldmap"
	"github.com/zulandar/storyforge/internal/similarity"
	"github.com/zulandar/storyforge/internal/workitem"
)

// updatableFields maps the editable keys of a work item update onto ADO
// field reference names.
var updatableFields = map[string]string{
	"title":              ado.FieldTitle,
	"state":              ado.FieldState,
	"assignedTo":         ado.FieldAssignedTo,
	"priority":           ado.FieldPriority,
	"description":        ado.FieldDescription,
	"acceptanceCriteria": "Microsoft.VSTS.Common.AcceptanceCriteria",
	"storyPoints":        ado.FieldStoryPoints,
	"areaPath":           ado.FieldAreaPath,
	"iterationPath":      ado.FieldIterationPath,
	"tags":               ado.FieldTags,
	"parent":             ado.FieldParent,
}

// updatableOrder fixes the order of the emitted patch operations.
var updatableOrder = []string{
	"title", "state", "assignedTo", "priority", "description", "acceptanceCriteria",
	"storyPoints", "areaPath", "iterationPath", "tags", "parent",
}

func handleEpics(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		epics, err := client.EpicsAndFeatures(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"epics": epics})
	}
}

func handleRecentWorkItems(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		items, err := client.RecentWorkItems(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"workItems": items})
	}
}

func handleCacheRefresh(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := cache.Refresh(c.Request.Context(), d.db, d.ado)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Successfully cached " + strconv.Itoa(n) + " work items",
			"count":   n,
		})
	}
}

func handleCacheStats(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := cache.GetStats(d.db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

type searchRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Limit       int    `json:"limit"`
}

func handleSearch(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			badRequest(c, "Title is required for duplicate search")
			return
		}
		matches, err := similarity.Search(d.db, similarity.Query{
			Title:       req.Title,
			Description: req.Description,
			Limit:       req.Limit,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
	}
}

// handleBacklog returns the active backlog both flat and as a forest whose
// nodes carry their deep progress.
func handleBacklog(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		items, err := client.AllActiveWorkItems(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		roots := workitem.BuildForest(items)
		workitem.AnnotateProgress(roots)
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"workItems": items,
			"hierarchy": roots,
			"count":     len(items),
		})
	}
}

type createRequest struct {
	Type   string                 `json:"type"`
	Fields map[string]interface{} `json:"fields"`
}

// handleCreateWorkItem translates logical field names through the field
// mapping table and creates the item in ADO.
func handleCreateWorkItem(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Type) == "" {
			badRequest(c, "Work item type is required")
			return
		}
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		if p, ok := req.Fields[fieldmap.ParentField]; ok && p != nil {
			id, ok := intValue(p)
			if !ok {
				badRequest(c, "Invalid parent ID")
				return
			}
			req.Fields[fieldmap.ParentField] = client.APIURL(id)
		}
		ops, err := fieldmap.BuildPatchOperations(d.db, req.Type, req.Fields)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(ops) == 0 {
			badRequest(c, "No valid fields to create")
			return
		}
		item, err := client.CreateWorkItem(c.Request.Context(), req.Type, ops)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "workItem": item})
	}
}

func handleUpdateWorkItem(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workItemID(c)
		if !ok {
			return
		}
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "No valid fields to update")
			return
		}
		var ops []workitem.PatchOperation
		for _, key := range updatableOrder {
			v, present := body[key]
			if !present || v == nil {
				continue
			}
			ops = append(ops, workitem.AddField(updatableFields[key], v))
		}
		if len(ops) == 0 {
			badRequest(c, "No valid fields to update")
			return
		}

		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := client.UpdateWorkItem(c.Request.Context(), id, ops)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "workItem": item, "fieldsUpdated": len(ops)})
	}
}

// handleMoveWorkItem re-parents an item or moves it to another iteration.
// A null or empty parent removes the first relation.
func handleMoveWorkItem(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workItemID(c)
		if !ok {
			return
		}
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			body = nil
		}

		var ops []workitem.PatchOperation
		if parent, present := body["parent"]; present {
			if parent == nil || parent == "" {
				ops = append(ops, workitem.PatchOperation{Op: "remove", Path: "/relations/0"})
			} else {
				pid, ok := intValue(parent)
				if !ok {
					badRequest(c, "Invalid parent ID")
					return
				}
				ops = append(ops, workitem.AddField(ado.FieldParent, pid))
			}
		}
		if s, _ := body["iterationPath"].(string); s != "" {
			ops = append(ops, workitem.AddField(ado.FieldIterationPath, s))
		}
		if s, _ := body["state"].(string); s != "" {
			ops = append(ops, workitem.AddField(ado.FieldState, s))
		}
		if len(ops) == 0 {
			badRequest(c, "No move operation specified (parent or iterationPath required)")
			return
		}

		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := client.UpdateWorkItem(c.Request.Context(), id, ops)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "workItem": item})
	}
}

func handleWikiSearch(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		title := c.Query("title")
		if title == "" {
			badRequest(c, "title query parameter is required")
			return
		}
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		page, err := client.FindWikiPageByTitle(c.Request.Context(), title)
		if err != nil {
			respondError(c, err)
			return
		}
		if page == nil {
			c.JSON(http.StatusOK, gin.H{"found": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"found": true, "wiki": page})
	}
}

func handleWorkItem(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workItemID(c)
		if !ok {
			return
		}
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := client.WorkItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "workItem": item})
	}
}

// handleFeatureDetail returns a work item with its wiki page, direct
// children and their progress. The wiki and children are optional: a
// failure fetching either is logged and reported as empty.
func handleFeatureDetail(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workItemID(c)
		if !ok {
			return
		}
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		item, err := client.WorkItem(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}

		var wiki *ado.WikiPage
		if item.Title != "" {
			wiki, err = client.FindWikiPageByTitle(ctx, item.Title)
			if err != nil {
				logDegraded("wiki search", id, err)
				wiki = nil
			}
		}

		children, err := client.ChildWorkItems(ctx, id)
		if err != nil {
			logDegraded("child items", id, err)
			children = []workitem.WorkItem{}
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"workItem":   item,
			"wiki":       wiki,
			"childItems": children,
			"progress":   workitem.ShallowProgress(children),
		})
	}
}

// workItemID parses the :id path parameter, writing a 400 when it is not
// an integer.
func workItemID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid work item ID")
		return 0, false
	}
	return id, true
}

// intValue accepts a whole JSON number or a numeric string.
func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
