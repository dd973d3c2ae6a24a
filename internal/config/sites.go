package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

const (
	defaultBedrooms  = 3
	defaultBathrooms = 2.0
	defaultSqft      = 2000
	defaultLotCount  = 12
	defaultStories   = 1
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

type rawGlobal struct {
	DefaultBedrooms  *int     `json:"default_bedrooms" yaml:"default_bedrooms" validate:"omitempty,min=0"`
	DefaultBathrooms *float64 `json:"default_bathrooms" yaml:"default_bathrooms" validate:"omitempty,min=0"`
	DefaultSqft      *int     `json:"default_sqft" yaml:"default_sqft" validate:"omitempty,min=0"`
	StrictMode       *bool    `json:"strict_mode" yaml:"strict_mode"`
	Strict           *bool    `json:"strict" yaml:"strict"`
	MaxMiscDocs      *int     `json:"max_misc_docs" yaml:"max_misc_docs" validate:"omitempty,min=0"`
}

type rawSite struct {
	Slug              string                         `json:"slug" yaml:"slug" validate:"required,slug"`
	Name              string                         `json:"name" yaml:"name"`
	Aliases           []string                       `json:"aliases" yaml:"aliases"`
	LotCount          *int                           `json:"lot_count" yaml:"lot_count" validate:"omitempty,min=0"`
	LotDetails        map[string]rawLotDetail        `json:"lot_details" yaml:"lot_details" validate:"omitempty,dive"`
	LotRequirements   *rawLotRequirements            `json:"lot_requirements" yaml:"lot_requirements"`
	PlanDetails       map[string]rawPlanDetail       `json:"plan_details" yaml:"plan_details" validate:"omitempty,dive"`
	DocumentOverrides map[string]rawDocumentOverride `json:"document_overrides" yaml:"document_overrides"`
	DriveFolderID     string                         `json:"drive_folder_id" yaml:"drive_folder_id"`
	LotPages          map[string]int                 `json:"lot_pages" yaml:"lot_pages" validate:"omitempty,dive,min=1"`
	Overrides         map[string]string              `json:"overrides" yaml:"overrides" validate:"omitempty,dive,required"`
	HideEmptySections *bool                          `json:"hide_empty_sections" yaml:"hide_empty_sections"`
}

type rawLotDetail struct {
	APN               string            `json:"apn" yaml:"apn"`
	Address           string            `json:"address" yaml:"address"`
	Status            string            `json:"status" yaml:"status"`
	Size              string            `json:"size" yaml:"size"`
	HasTitleReport    bool              `json:"has_title_report" yaml:"has_title_report"`
	HasGrading        bool              `json:"has_grading" yaml:"has_grading"`
	HasPlanAssignment bool              `json:"has_plan_assignment" yaml:"has_plan_assignment"`
	DocRefs           map[string]string `json:"doc_refs" yaml:"doc_refs"`
}

type rawLotRequirements struct {
	ShowMissing      *bool    `json:"show_missing" yaml:"show_missing"`
	HideIncomplete   bool     `json:"hide_incomplete" yaml:"hide_incomplete"`
	RequiredDocs     []string `json:"required_docs" yaml:"required_docs" validate:"omitempty,dive,required"`
	ShowStatusInSize bool     `json:"show_status_in_size" yaml:"show_status_in_size"`
}

type rawPlanDetail struct {
	Bedrooms  *int     `json:"bedrooms" yaml:"bedrooms" validate:"omitempty,min=0"`
	Bathrooms *float64 `json:"bathrooms" yaml:"bathrooms" validate:"omitempty,min=0"`
	Sqft      *int     `json:"sqft" yaml:"sqft" validate:"omitempty,min=0"`
	Stories   *int     `json:"stories" yaml:"stories" validate:"omitempty,min=1"`
	GarageSF  int      `json:"garage_sf" yaml:"garage_sf" validate:"min=0"`
}

type rawDocumentOverride struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Hide        bool   `json:"hide" yaml:"hide"`
}

// siteEntry is one undecoded element of the sites list, kept raw so a
// malformed site is rejected alone.
type siteEntry interface {
	decode(out *rawSite) error
	slugHint() string
}

type jsonSite json.RawMessage

func (s jsonSite) decode(out *rawSite) error {
	dec := json.NewDecoder(bytes.NewReader(s))
	return dec.Decode(out)
}

func (s jsonSite) slugHint() string {
	var probe struct {
		Slug string `json:"slug"`
	}
	_ = json.Unmarshal(s, &probe)
	return probe.Slug
}

type yamlSite struct{ node *yaml.Node }

func (s yamlSite) decode(out *rawSite) error { return s.node.Decode(out) }

func (s yamlSite) slugHint() string {
	var probe struct {
		Slug string `yaml:"slug"`
	}
	_ = s.node.Decode(&probe)
	return probe.Slug
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

// LoadSites reads the site configuration from a JSON or YAML file, chosen by
// extension. A malformed file or global block fails the whole load with
// ErrConfig; an invalid site is returned in Rejected.
func LoadSites(path string) (*domain.SitesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfig, "read sites config", err)
	}
	return ParseSites(data, filepath.Ext(path))
}

// ParseSites decodes a site configuration document. ext selects YAML for
// ".yaml" and ".yml"; anything else is JSON.
func ParseSites(data []byte, ext string) (*domain.SitesConfig, error) {
	global, entries, err := decodeDocument(data, strings.ToLower(ext))
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfig, "parse sites config", err)
	}

	validate := newValidator()
	if err := validate.Struct(global); err != nil {
		return nil, domain.WrapError(domain.ErrConfig, "validate global config", validationError(err))
	}

	merged := mergeGlobalDefaults(global)
	out := &domain.SitesConfig{
		Global:   merged,
		Sites:    make([]domain.SiteConfig, 0, len(entries)),
		Rejected: make([]domain.RejectedSite, 0),
	}
	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		site, err := buildSite(validate, merged, entry)
		if err == nil && seen[site.Slug] {
			err = fmt.Errorf("duplicate slug %q", site.Slug)
		}
		if err != nil {
			slug := entry.slugHint()
			if slug == "" {
				slug = fmt.Sprintf("sites[%d]", i)
			}
			out.Rejected = append(out.Rejected, domain.RejectedSite{
				Slug: slug,
				Err:  domain.WrapError(domain.ErrConfig, "validate site "+slug, err),
			})
			continue
		}
		seen[site.Slug] = true
		out.Sites = append(out.Sites, site)
	}
	return out, nil
}

func decodeDocument(data []byte, ext string) (rawGlobal, []siteEntry, error) {
	var global rawGlobal
	if ext == ".yaml" || ext == ".yml" {
		var doc struct {
			Global rawGlobal   `yaml:"global"`
			Sites  []yaml.Node `yaml:"sites"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return global, nil, err
		}
		entries := make([]siteEntry, 0, len(doc.Sites))
		for i := range doc.Sites {
			entries = append(entries, yamlSite{node: &doc.Sites[i]})
		}
		return doc.Global, entries, nil
	}

	var doc struct {
		Global rawGlobal         `json:"global"`
		Sites  []json.RawMessage `json:"sites"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return global, nil, err
	}
	entries := make([]siteEntry, 0, len(doc.Sites))
	for _, raw := range doc.Sites {
		entries = append(entries, jsonSite(raw))
	}
	return doc.Global, entries, nil
}

func buildSite(validate *validator.Validate, global domain.GlobalConfig, entry siteEntry) (domain.SiteConfig, error) {
	var raw rawSite
	if err := entry.decode(&raw); err != nil {
		return domain.SiteConfig{}, err
	}
	if err := validate.Struct(raw); err != nil {
		return domain.SiteConfig{}, validationError(err)
	}
	return mergeSiteDefaults(raw, global)
}

func mergeGlobalDefaults(raw rawGlobal) domain.GlobalConfig {
	out := domain.GlobalConfig{
		DefaultBedrooms:  intOr(raw.DefaultBedrooms, defaultBedrooms),
		DefaultBathrooms: floatOr(raw.DefaultBathrooms, defaultBathrooms),
		DefaultSqft:      intOr(raw.DefaultSqft, defaultSqft),
		StrictMode:       true,
	}
	switch {
	case raw.StrictMode != nil:
		out.StrictMode = *raw.StrictMode
	case raw.Strict != nil:
		out.StrictMode = *raw.Strict
	}
	if raw.MaxMiscDocs != nil {
		limit := *raw.MaxMiscDocs
		out.MaxMiscDocs = &limit
	}
	return out
}

// mergeSiteDefaults converts a validated raw site, enforcing numeric keys and
// lot bounds. An absent lot_count covers at least every configured lot. Plan
// attributes left out fall back to the global defaults.
func mergeSiteDefaults(raw rawSite, global domain.GlobalConfig) (domain.SiteConfig, error) {
	site := domain.SiteConfig{
		Slug:              strings.TrimSpace(raw.Slug),
		Name:              strings.TrimSpace(raw.Name),
		Aliases:           raw.Aliases,
		DriveFolderID:     strings.TrimSpace(raw.DriveFolderID),
		Overrides:         raw.Overrides,
		HideEmptySections: boolOr(raw.HideEmptySections, true),
		LotRequirements:   domain.LotRequirements{ShowMissing: true},
	}
	if site.Name == "" {
		site.Name = site.Slug
	}

	lotDetails := make(map[int]domain.LotDetail, len(raw.LotDetails))
	maxLot := 0
	for key, detail := range raw.LotDetails {
		n, err := positiveKey("lot_details", key)
		if err != nil {
			return domain.SiteConfig{}, err
		}
		lotDetails[n] = domain.LotDetail{
			APN:               strings.TrimSpace(detail.APN),
			Address:           strings.TrimSpace(detail.Address),
			Status:            strings.TrimSpace(detail.Status),
			Size:              strings.TrimSpace(detail.Size),
			HasTitleReport:    detail.HasTitleReport,
			HasGrading:        detail.HasGrading,
			HasPlanAssignment: detail.HasPlanAssignment,
			DocRefs:           detail.DocRefs,
		}
		if n > maxLot {
			maxLot = n
		}
	}
	site.LotDetails = lotDetails

	if raw.LotCount != nil {
		site.LotCount = *raw.LotCount
		if maxLot > site.LotCount {
			return domain.SiteConfig{}, fmt.Errorf("lot_details references lot %d beyond lot_count %d", maxLot, site.LotCount)
		}
	} else {
		site.LotCount = max(defaultLotCount, maxLot)
	}

	if req := raw.LotRequirements; req != nil {
		site.LotRequirements = domain.LotRequirements{
			ShowMissing:      boolOr(req.ShowMissing, true),
			HideIncomplete:   req.HideIncomplete,
			RequiredDocs:     req.RequiredDocs,
			ShowStatusInSize: req.ShowStatusInSize,
		}
	}

	planDetails := make(map[int]domain.PlanDetail, len(raw.PlanDetails))
	for key, detail := range raw.PlanDetails {
		n, err := positiveKey("plan_details", key)
		if err != nil {
			return domain.SiteConfig{}, err
		}
		planDetails[n] = domain.PlanDetail{
			Bedrooms:  intOr(detail.Bedrooms, global.DefaultBedrooms),
			Bathrooms: floatOr(detail.Bathrooms, global.DefaultBathrooms),
			Sqft:      intOr(detail.Sqft, global.DefaultSqft),
			Stories:   intOr(detail.Stories, defaultStories),
			GarageSF:  detail.GarageSF,
		}
	}
	site.PlanDetails = planDetails

	lotPages := make(map[int]int, len(raw.LotPages))
	for key, page := range raw.LotPages {
		n, err := positiveKey("lot_pages", key)
		if err != nil {
			return domain.SiteConfig{}, err
		}
		lotPages[n] = page
	}
	site.LotPages = lotPages

	overrides := make(map[string]domain.DocumentOverride, len(raw.DocumentOverrides))
	for key, override := range raw.DocumentOverrides {
		overrides[key] = domain.DocumentOverride{
			Title:       override.Title,
			Description: override.Description,
			Hide:        override.Hide,
		}
	}
	site.DocumentOverrides = overrides

	return site, nil
}

func positiveKey(field, key string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s key %q is not a positive integer", field, key)
	}
	return n, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(parts)
	return errors.New(strings.Join(parts, "; "))
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// SitesFile is a site configuration source re-read on every load so edits
// are picked up by long running processes.
type SitesFile struct {
	path   string
	logger *zap.Logger
}

func NewSitesFile(path string, logger *zap.Logger) *SitesFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SitesFile{path: path, logger: logger}
}

func (f *SitesFile) Path() string {
	return f.path
}

func (f *SitesFile) LoadSites(_ context.Context) (*domain.SitesConfig, error) {
	cfg, err := LoadSites(f.path)
	if err != nil {
		return nil, err
	}
	for _, rejected := range cfg.Rejected {
		f.logger.Warn("site config rejected",
			zap.String("path", f.path),
			zap.String("site", rejected.Slug),
			zap.Error(rejected.Err),
		)
	}
	return cfg, nil
}
