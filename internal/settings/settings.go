// Package settings manages the singleton Azure DevOps connection row.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/storyforge/internal/credential"
	"github.com/zulandar/storyforge/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PATKey is the keyring entry holding the ADO personal access token.
const PATKey = "ado_pat"

var (
	// ErrNotConfigured is returned when no settings row exists yet.
	ErrNotConfigured = errors.New("settings: Azure DevOps settings not configured")

	// ErrMissingFields is returned by Save when a required value is empty.
	ErrMissingFields = errors.New("settings: missing required fields: ado_org_url, ado_project, ado_pat")
)

// DefaultWorkItemTypes are used until a connection test has detected the
// project's real types.
var DefaultWorkItemTypes = []string{"Epic", "Issue", "Task"}

// Input is the editable part of the settings row.
type Input struct {
	AdoOrgURL     string `json:"ado_org_url"`
	AdoProject    string `json:"ado_project"`
	AdoPAT        string `json:"ado_pat"`
	AreaPath      string `json:"area_path"`
	IterationPath string `json:"iteration_path"`
}

// Sanitized is the settings row with the PAT replaced by a flag.
type Sanitized struct {
	ID                     uint      `json:"id"`
	AdoOrgURL              string    `json:"ado_org_url"`
	AdoProject             string    `json:"ado_project"`
	AdoPATConfigured       bool      `json:"ado_pat_configured"`
	AreaPath               *string   `json:"area_path"`
	IterationPath          *string   `json:"iteration_path"`
	AvailableWorkItemTypes []string  `json:"available_work_item_types"`
	ProcessTemplate        *string   `json:"process_template"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Store reads and writes settings. When Secrets is nil the PAT lives in the
// settings row; otherwise it lives in Secrets and the column stays empty.
type Store struct {
	DB      *gorm.DB
	Secrets credential.Store
}

// New returns a Store.
func New(db *gorm.DB, secrets credential.Store) *Store {
	return &Store{DB: db, Secrets: secrets}
}

// Get loads the settings row, resolving the PAT from the secret store when
// one is configured.
func (s *Store) Get() (*models.Settings, error) {
	var row models.Settings
	if err := s.DB.First(&row, models.SettingsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("settings: get: %w", err)
	}
	if s.Secrets != nil {
		pat, err := s.Secrets.Get(PATKey)
		switch {
		case err == nil:
			row.AdoPAT = pat
		case errors.Is(err, credential.ErrNotFound):
			row.AdoPAT = ""
		default:
			return nil, fmt.Errorf("settings: get pat: %w", err)
		}
	}
	return &row, nil
}

// Configured reports whether row has everything needed to call ADO.
func Configured(row *models.Settings) bool {
	return row != nil && row.AdoOrgURL != "" && row.AdoProject != "" && row.AdoPAT != ""
}

// Connection returns the settings row only when it is fully configured.
func (s *Store) Connection() (*models.Settings, error) {
	row, err := s.Get()
	if err != nil {
		return nil, err
	}
	if !Configured(row) {
		return nil, ErrNotConfigured
	}
	return row, nil
}

// Save validates and upserts the connection settings. Detected work item
// types and process template are kept.
func (s *Store) Save(in Input) (*models.Settings, error) {
	in.AdoOrgURL = strings.TrimRight(strings.TrimSpace(in.AdoOrgURL), "/")
	in.AdoProject = strings.TrimSpace(in.AdoProject)
	in.AdoPAT = strings.TrimSpace(in.AdoPAT)
	if in.AdoOrgURL == "" || in.AdoProject == "" || in.AdoPAT == "" {
		return nil, ErrMissingFields
	}

	row := models.Settings{
		ID:            models.SettingsID,
		AdoOrgURL:     in.AdoOrgURL,
		AdoProject:    in.AdoProject,
		AdoPAT:        in.AdoPAT,
		AreaPath:      nonEmpty(in.AreaPath),
		IterationPath: nonEmpty(in.IterationPath),
	}
	if s.Secrets != nil {
		if err := s.Secrets.Set(PATKey, in.AdoPAT); err != nil {
			return nil, fmt.Errorf("settings: save pat: %w", err)
		}
		row.AdoPAT = ""
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ado_org_url", "ado_project", "ado_pat", "area_path", "iteration_path", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("settings: save: %w", err)
	}
	return s.Get()
}

// Sanitized returns the settings without the PAT.
func (s *Store) Sanitized() (*Sanitized, error) {
	row, err := s.Get()
	if err != nil {
		return nil, err
	}
	return &Sanitized{
		ID:                     row.ID,
		AdoOrgURL:              row.AdoOrgURL,
		AdoProject:             row.AdoProject,
		AdoPATConfigured:       row.AdoPAT != "",
		AreaPath:               row.AreaPath,
		IterationPath:          row.IterationPath,
		AvailableWorkItemTypes: []string(row.AvailableWorkItemTypes),
		ProcessTemplate:        row.ProcessTemplate,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}, nil
}

// UpdateWorkItemTypes stores the type names detected on the ADO project and
// the process template inferred from them.
func (s *Store) UpdateWorkItemTypes(names []string, processTemplate string) error {
	tmpl := processTemplate
	result := s.DB.Model(&models.Settings{}).Where("id = ?", models.SettingsID).Updates(map[string]interface{}{
		"available_work_item_types": datatypes.JSONSlice[string](names),
		"process_template":          &tmpl,
		"updated_at":                time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("settings: update work item types: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotConfigured
	}
	return nil
}

// AvailableWorkItemTypes returns the detected type names, or
// DefaultWorkItemTypes when none have been detected.
func (s *Store) AvailableWorkItemTypes() ([]string, error) {
	row, err := s.Get()
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return nil, err
	}
	if row != nil && len(row.AvailableWorkItemTypes) > 0 {
		return []string(row.AvailableWorkItemTypes), nil
	}
	out := make([]string, len(DefaultWorkItemTypes))
	copy(out, DefaultWorkItemTypes)
	return out, nil
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
