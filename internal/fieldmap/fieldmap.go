// Package fieldmap translates logical field names into ADO field reference
// names using the field_mappings table.
package fieldmap

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/zulandar/storyforge/internal/models"
	"github.com/zulandar/storyforge/internal/workitem"
	"gorm.io/gorm"
)

// ParentField is the logical field that becomes a hierarchy relation rather
// than a field write.
const ParentField = "parent"

// ParentLinkType is the ADO relation used to point a child at its parent.
const ParentLinkType = "System.LinkTypes.Hierarchy-Reverse"

// Mapping is one (work item type, logical field) → ADO reference row.
type Mapping struct {
	WorkItemType string `json:"work_item_type"`
	LogicalField string `json:"logical_field"`
	AdoFieldName string `json:"ado_field_name"`
}

// Defaults returns the mappings seeded into a fresh store.
func Defaults() []Mapping {
	var out []Mapping
	add := func(typ string, pairs ...string) {
		for i := 0; i+1 < len(pairs); i += 2 {
			out = append(out, Mapping{WorkItemType: typ, LogicalField: pairs[i], AdoFieldName: pairs[i+1]})
		}
	}

	add("Bug",
		"title", "System.Title",
		"description", "System.Description",
		"assignedTo", "System.AssignedTo",
		"state", "System.State",
		"priority", "Microsoft.VSTS.Common.Priority",
		"severity", "Microsoft.VSTS.Common.Severity",
		"areaPath", "System.AreaPath",
		"iterationPath", "System.IterationPath",
		"tags", "System.Tags",
		"reproSteps", "Microsoft.VSTS.TCM.ReproSteps",
		"systemInfo", "Microsoft.VSTS.TCM.SystemInfo",
		"acceptanceCriteria", "Microsoft.VSTS.Common.AcceptanceCriteria",
		"foundInBuild", "Microsoft.VSTS.Build.FoundIn",
		"integrationBuild", "Microsoft.VSTS.Build.IntegrationBuild",
	)
	add("User Story",
		"title", "System.Title",
		"description", "System.Description",
		"assignedTo", "System.AssignedTo",
		"state", "System.State",
		"priority", "Microsoft.VSTS.Common.Priority",
		"areaPath", "System.AreaPath",
		"iterationPath", "System.IterationPath",
		"tags", "System.Tags",
		"acceptanceCriteria", "Microsoft.VSTS.Common.AcceptanceCriteria",
		"storyPoints", "Microsoft.VSTS.Scheduling.StoryPoints",
		"risk", "Microsoft.VSTS.Common.Risk",
		"value", "Microsoft.VSTS.Common.BusinessValue",
	)
	add("Task",
		"title", "System.Title",
		"description", "System.Description",
		"assignedTo", "System.AssignedTo",
		"state", "System.State",
		"priority", "Microsoft.VSTS.Common.Priority",
		"areaPath", "System.AreaPath",
		"iterationPath", "System.IterationPath",
		"tags", "System.Tags",
		"activity", "Microsoft.VSTS.Common.Activity",
		"remainingWork", "Microsoft.VSTS.Scheduling.RemainingWork",
		"originalEstimate", "Microsoft.VSTS.Scheduling.OriginalEstimate",
		"completedWork", "Microsoft.VSTS.Scheduling.CompletedWork",
	)
	add("Epic",
		"title", "System.Title",
		"description", "System.Description",
		"state", "System.State",
		"priority", "Microsoft.VSTS.Common.Priority",
		"areaPath", "System.AreaPath",
		"iterationPath", "System.IterationPath",
	)
	add("Feature",
		"title", "System.Title",
		"description", "System.Description",
		"state", "System.State",
		"priority", "Microsoft.VSTS.Common.Priority",
		"areaPath", "System.AreaPath",
		"iterationPath", "System.IterationPath",
		"value", "Microsoft.VSTS.Common.BusinessValue",
		"targetDate", "Microsoft.VSTS.Scheduling.TargetDate",
	)
	return out
}

// AdoFieldName looks up the ADO reference for a logical field. The boolean is
// false when no mapping exists.
func AdoFieldName(db *gorm.DB, workItemType, logicalField string) (string, bool, error) {
	var m models.FieldMapping
	err := db.Where("work_item_type = ? AND logical_field = ?", workItemType, logicalField).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fieldmap: lookup %s.%s: %w", workItemType, logicalField, err)
	}
	return m.AdoFieldName, true, nil
}

// MappingsForType returns every mapping for a work item type.
func MappingsForType(db *gorm.DB, workItemType string) ([]Mapping, error) {
	var rows []models.FieldMapping
	if err := db.Where("work_item_type = ?", workItemType).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fieldmap: mappings for %s: %w", workItemType, err)
	}
	out := make([]Mapping, len(rows))
	for i, r := range rows {
		out[i] = Mapping{WorkItemType: r.WorkItemType, LogicalField: r.LogicalField, AdoFieldName: r.AdoFieldName}
	}
	return out, nil
}

// AvailableTypes returns the distinct work item types that have mappings,
// sorted by name.
func AvailableTypes(db *gorm.DB) ([]string, error) {
	var types []string
	if err := db.Model(&models.FieldMapping{}).Distinct().Order("work_item_type ASC").Pluck("work_item_type", &types).Error; err != nil {
		return nil, fmt.Errorf("fieldmap: available types: %w", err)
	}
	return types, nil
}

// BuildPatchOperations converts logical field values into ADO JSON-Patch
// operations. Nil values are skipped. The "parent" field becomes a hierarchy
// relation whose value is the parent's URL. Fields without a mapping are
// logged and skipped. Operations are emitted in field name order.
func BuildPatchOperations(db *gorm.DB, workItemType string, data map[string]interface{}) ([]workitem.PatchOperation, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mappings, err := MappingsForType(db, workItemType)
	if err != nil {
		return nil, err
	}
	byField := make(map[string]string, len(mappings))
	for _, m := range mappings {
		byField[m.LogicalField] = m.AdoFieldName
	}

	ops := make([]workitem.PatchOperation, 0, len(keys))
	for _, field := range keys {
		value := data[field]
		if value == nil {
			continue
		}
		if field == ParentField {
			ops = append(ops, workitem.PatchOperation{
				Op:   "add",
				Path: "/relations/-",
				Value: workitem.Relation{
					Rel:        ParentLinkType,
					URL:        fmt.Sprint(value),
					Attributes: map[string]string{"comment": "Parent work item"},
				},
			})
			continue
		}
		ref, ok := byField[field]
		if !ok {
			log.Printf("fieldmap: no mapping for %s.%s, skipping", workItemType, field)
			continue
		}
		ops = append(ops, workitem.AddField(ref, value))
	}
	return ops, nil
}
