// Package innovation manages the RICE-scored innovation funnel: ideas that
// move through a fixed set of stages and are ordered within each stage.
package innovation

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/storyforge/internal/models"
	"github.com/zulandar/storyforge/internal/optional"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Funnel stages, in board order.
const (
	StageIntake        = "Intake"
	StageTriage        = "Triage"
	StageDiscovery     = "Discovery"
	StageReadyForBuild = "Ready for Build"
	StageInFlight      = "In Flight"
	StageParked        = "Parked"
	StageRejected      = "Rejected"
)

var stages = []string{
	StageIntake, StageTriage, StageDiscovery, StageReadyForBuild,
	StageInFlight, StageParked, StageRejected,
}

// TopItemsLimit caps Stats.TopItems.
const TopItemsLimit = 5

// ErrNotFound is returned when an item id does not exist.
var ErrNotFound = errors.New("Innovation item not found")

// ValidationError rejects caller input. Message is safe to show to users.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Stages returns the funnel stages in order.
func Stages() []string {
	out := make([]string, len(stages))
	copy(out, stages)
	return out
}

// ValidStage reports whether s is one of Stages.
func ValidStage(s string) bool {
	for _, st := range stages {
		if st == s {
			return true
		}
	}
	return false
}

func invalidStage() *ValidationError {
	return &ValidationError{
		Field:   "stage",
		Message: "Invalid stage. Must be one of: " + strings.Join(stages, ", "),
	}
}

// RiceScore is reach*impact*(confidence/100)/effort. It is nil unless all
// four inputs are set and non-zero.
func RiceScore(reach, impact, confidence, effort *float64) *float64 {
	for _, v := range []*float64{reach, impact, confidence, effort} {
		if v == nil || *v == 0 {
			return nil
		}
	}
	score := (*reach * *impact * (*confidence / 100)) / *effort
	return &score
}

// CreateOpts holds the fields accepted when creating an item. Blank strings
// and zero numbers are stored as null.
type CreateOpts struct {
	Title          string   `json:"title"`
	Description    *string  `json:"description"`
	Stage          string   `json:"stage"`
	AdoFeatureID   *int     `json:"ado_feature_id"`
	RiceReach      *float64 `json:"rice_reach"`
	RiceImpact     *float64 `json:"rice_impact"`
	RiceConfidence *float64 `json:"rice_confidence"`
	RiceEffort     *float64 `json:"rice_effort"`
	RoiEstimate    *string  `json:"roi_estimate"`
	RoiNotes       *string  `json:"roi_notes"`
	Owner          *string  `json:"owner"`
	Requestor      *string  `json:"requestor"`
	Category       *string  `json:"category"`
	Tags           []string `json:"tags"`
	StatusNotes    *string  `json:"status_notes"`
}

// Create inserts a new item at the end of its stage. Stage defaults to Intake.
func Create(db *gorm.DB, opts CreateOpts) (*models.InnovationItem, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "Title is required"}
	}
	stage := opts.Stage
	if stage == "" {
		stage = StageIntake
	}
	if !ValidStage(stage) {
		return nil, invalidStage()
	}

	now := time.Now().UTC()
	item := models.InnovationItem{
		Title:          title,
		Description:    blankToNil(opts.Description),
		Stage:          stage,
		AdoFeatureID:   zeroIntToNil(opts.AdoFeatureID),
		RiceReach:      zeroToNil(opts.RiceReach),
		RiceImpact:     zeroToNil(opts.RiceImpact),
		RiceConfidence: zeroToNil(opts.RiceConfidence),
		RiceEffort:     zeroToNil(opts.RiceEffort),
		RoiEstimate:    blankToNil(opts.RoiEstimate),
		RoiNotes:       blankToNil(opts.RoiNotes),
		Owner:          blankToNil(opts.Owner),
		Requestor:      blankToNil(opts.Requestor),
		Category:       blankToNil(opts.Category),
		StatusNotes:    blankToNil(opts.StatusNotes),
		CreatedAt:      now,
		UpdatedAt:      now,
		StageChangedAt: now,
	}
	if opts.Tags != nil {
		item.Tags = datatypes.JSONSlice[string](opts.Tags)
	}
	item.RiceScore = RiceScore(item.RiceReach, item.RiceImpact, item.RiceConfidence, item.RiceEffort)

	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := nextOrder(tx, stage)
		if err != nil {
			return err
		}
		item.StageOrder = order
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, fmt.Errorf("innovation: create: %w", err)
	}
	return &item, nil
}

// Get loads one item.
func Get(db *gorm.DB, id uint) (*models.InnovationItem, error) {
	var item models.InnovationItem
	if err := db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("innovation: get %d: %w", id, err)
	}
	return &item, nil
}

// List returns items ordered by stage_order, newest first within a tie. An
// unknown stage filter is ignored.
func List(db *gorm.DB, stage string) ([]models.InnovationItem, error) {
	q := db.Model(&models.InnovationItem{})
	if ValidStage(stage) {
		q = q.Where("stage = ?", stage)
	}
	var items []models.InnovationItem
	if err := q.Order("stage_order ASC").Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("innovation: list: %w", err)
	}
	return items, nil
}

// Patch is a partial update. Absent fields keep their value and explicit
// nulls clear it. A blank title or stage is ignored.
type Patch struct {
	Title           optional.Value[string]   `json:"title"`
	Description     optional.Value[string]   `json:"description"`
	Stage           optional.Value[string]   `json:"stage"`
	AdoFeatureID    optional.Value[int]      `json:"ado_feature_id"`
	RiceReach       optional.Value[float64]  `json:"rice_reach"`
	RiceImpact      optional.Value[float64]  `json:"rice_impact"`
	RiceConfidence  optional.Value[float64]  `json:"rice_confidence"`
	RiceEffort      optional.Value[float64]  `json:"rice_effort"`
	RoiEstimate     optional.Value[string]   `json:"roi_estimate"`
	RoiNotes        optional.Value[string]   `json:"roi_notes"`
	Owner           optional.Value[string]   `json:"owner"`
	Requestor       optional.Value[string]   `json:"requestor"`
	Category        optional.Value[string]   `json:"category"`
	Tags            optional.Value[[]string] `json:"tags"`
	StatusNotes     optional.Value[string]   `json:"status_notes"`
	RejectionReason optional.Value[string]   `json:"rejection_reason"`
}

// Update applies p to item id. The RICE score is recomputed from the merged
// inputs. A stage change moves the item to the end of the new stage and
// stamps stage_changed_at.
func Update(db *gorm.DB, id uint, p Patch) (*models.InnovationItem, error) {
	newStage := ""
	if p.Stage.Present && !p.Stage.Null && p.Stage.V != "" {
		if !ValidStage(p.Stage.V) {
			return nil, invalidStage()
		}
		newStage = p.Stage.V
	}

	var item models.InnovationItem
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}

		if p.Title.Present && !p.Title.Null {
			if t := strings.TrimSpace(p.Title.V); t != "" {
				item.Title = t
			}
		}
		item.Description = optional.Merge(item.Description, p.Description)
		item.AdoFeatureID = optional.Merge(item.AdoFeatureID, p.AdoFeatureID)
		item.RiceReach = optional.Merge(item.RiceReach, p.RiceReach)
		item.RiceImpact = optional.Merge(item.RiceImpact, p.RiceImpact)
		item.RiceConfidence = optional.Merge(item.RiceConfidence, p.RiceConfidence)
		item.RiceEffort = optional.Merge(item.RiceEffort, p.RiceEffort)
		item.RoiEstimate = optional.Merge(item.RoiEstimate, p.RoiEstimate)
		item.RoiNotes = optional.Merge(item.RoiNotes, p.RoiNotes)
		item.Owner = optional.Merge(item.Owner, p.Owner)
		item.Requestor = optional.Merge(item.Requestor, p.Requestor)
		item.Category = optional.Merge(item.Category, p.Category)
		item.StatusNotes = optional.Merge(item.StatusNotes, p.StatusNotes)
		item.RejectionReason = optional.Merge(item.RejectionReason, p.RejectionReason)
		item.Tags = datatypes.JSONSlice[string](optional.MergeValue([]string(item.Tags), p.Tags))
		item.RiceScore = RiceScore(item.RiceReach, item.RiceImpact, item.RiceConfidence, item.RiceEffort)

		now := time.Now().UTC()
		if newStage != "" && newStage != item.Stage {
			order, err := nextOrder(tx, newStage)
			if err != nil {
				return err
			}
			item.Stage = newStage
			item.StageOrder = order
			item.StageChangedAt = now
		}
		item.UpdatedAt = now
		return tx.Save(&item).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("innovation: update %d: %w", id, err)
	}
	return &item, nil
}

// MoveStage appends the item to the end of stage. The rejection reason is
// only written when stage is Rejected; otherwise the stored one is kept.
func MoveStage(db *gorm.DB, id uint, stage string, rejectionReason string) (*models.InnovationItem, error) {
	if !ValidStage(stage) {
		return nil, invalidStage()
	}

	var item models.InnovationItem
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		order, err := nextOrder(tx, stage)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"stage":            stage,
			"stage_order":      order,
			"stage_changed_at": now,
			"updated_at":       now,
		}
		if stage == StageRejected {
			updates["rejection_reason"] = blankToNil(&rejectionReason)
		}
		if err := tx.Model(&item).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&item, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("innovation: move %d: %w", id, err)
	}
	return &item, nil
}

// Reorder moves an item to newOrder within its current stage, shifting the
// items between the old and new positions by one. Moving up shifts
// [newOrder, oldOrder) down the list; moving down shifts (oldOrder, newOrder]
// up. The same order is a no-op.
func Reorder(db *gorm.DB, id uint, newOrder int) (*models.InnovationItem, error) {
	if newOrder < 0 {
		return nil, &ValidationError{Field: "newOrder", Message: "newOrder must be a non-negative number"}
	}

	var item models.InnovationItem
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		oldOrder := item.StageOrder
		if newOrder == oldOrder {
			return nil
		}

		shift := tx.Model(&models.InnovationItem{}).Where("stage = ? AND id <> ?", item.Stage, item.ID)
		var err error
		if newOrder < oldOrder {
			err = shift.Where("stage_order >= ? AND stage_order < ?", newOrder, oldOrder).
				UpdateColumn("stage_order", gorm.Expr("stage_order + 1")).Error
		} else {
			err = shift.Where("stage_order > ? AND stage_order <= ?", oldOrder, newOrder).
				UpdateColumn("stage_order", gorm.Expr("stage_order - 1")).Error
		}
		if err != nil {
			return err
		}

		item.StageOrder = newOrder
		item.UpdatedAt = time.Now().UTC()
		return tx.Model(&item).Updates(map[string]interface{}{
			"stage_order": newOrder,
			"updated_at":  item.UpdatedAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("innovation: reorder %d: %w", id, err)
	}
	return &item, nil
}

// Delete removes one item. Orders in its stage are left as they are.
func Delete(db *gorm.DB, id uint) error {
	result := db.Delete(&models.InnovationItem{}, id)
	if result.Error != nil {
		return fmt.Errorf("innovation: delete %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TopItem is one entry of Stats.TopItems.
type TopItem struct {
	ID        uint    `json:"id"`
	Title     string  `json:"title"`
	RiceScore float64 `json:"rice_score"`
	Stage     string  `json:"stage"`
}

// Stats summarises the funnel.
type Stats struct {
	Total            int64          `json:"total"`
	ByStage          map[string]int `json:"byStage"`
	AverageRiceScore *float64       `json:"averageRiceScore"`
	TopItems         []TopItem      `json:"topItems"`
}

// GetStats counts items per stage (every stage present, zero when empty),
// averages the non-null RICE scores to two decimals and lists the top five.
func GetStats(db *gorm.DB) (*Stats, error) {
	var rows []struct {
		Stage string
		Count int
	}
	if err := db.Model(&models.InnovationItem{}).
		Select("stage, COUNT(*) AS count").Group("stage").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("innovation: stats by stage: %w", err)
	}

	stats := &Stats{ByStage: make(map[string]int, len(stages)), TopItems: []TopItem{}}
	for _, s := range stages {
		stats.ByStage[s] = 0
	}
	for _, r := range rows {
		stats.ByStage[r.Stage] = r.Count
		stats.Total += int64(r.Count)
	}

	var scored []models.InnovationItem
	if err := db.Select("id", "title", "rice_score", "stage").
		Where("rice_score IS NOT NULL").Find(&scored).Error; err != nil {
		return nil, fmt.Errorf("innovation: stats scores: %w", err)
	}
	if len(scored) == 0 {
		return stats, nil
	}

	var sum float64
	for _, it := range scored {
		sum += *it.RiceScore
	}
	avg := math.Round(sum/float64(len(scored))*100) / 100
	stats.AverageRiceScore = &avg

	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].RiceScore > *scored[j].RiceScore
	})
	if len(scored) > TopItemsLimit {
		scored = scored[:TopItemsLimit]
	}
	for _, it := range scored {
		stats.TopItems = append(stats.TopItems, TopItem{
			ID: it.ID, Title: it.Title, RiceScore: *it.RiceScore, Stage: it.Stage,
		})
	}
	return stats, nil
}

// nextOrder is one past the highest order in stage, or 0 for an empty stage.
func nextOrder(tx *gorm.DB, stage string) (int, error) {
	var max sql.NullInt64
	err := tx.Model(&models.InnovationItem{}).
		Where("stage = ?", stage).
		Select("MAX(stage_order)").
		Row().Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

func zeroToNil(f *float64) *float64 {
	if f == nil || *f == 0 {
		return nil
	}
	v := *f
	return &v
}

func zeroIntToNil(i *int) *int {
	if i == nil || *i == 0 {
		return nil
	}
	v := *i
	return &v
}
