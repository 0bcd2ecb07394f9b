// master.go — выборки мастер-таблиц и форм для GET /master/{entity}.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bigkaa/triup-gateway/internal/repository"
)

// MasterEntity — таблица мастер-выборки и колонка сортировки.
type MasterEntity struct {
	Table   string
	OrderBy string
}

// MasterEntities — поддерживаемые сущности по slug из URL.
var MasterEntities = map[string]MasterEntity{
	"address":             {Table: "address", OrderBy: "id"},
	"cofunders":           {Table: "cofunders", OrderBy: "id"},
	"departments":         {Table: "departments", OrderBy: "id"},
	"educationlevels":     {Table: "educationlevels", OrderBy: "id"},
	"findingdetaillists":  {Table: "findingdetaillists", OrderBy: "id"},
	"funders":             {Table: "funder", OrderBy: "id"},
	"groupstudies":        {Table: "groupstudies", OrderBy: "id"},
	"mainstudies":         {Table: "mainstudies", OrderBy: "id"},
	"substudies":          {Table: "substudies", OrderBy: "id"},
	"target-audiences":    {Table: "target_audiences", OrderBy: "id"},
	"time-settings":       {Table: "time_settings", OrderBy: "id"},
	"roles":               {Table: "roles", OrderBy: "id"},
	"prefixs":             {Table: "prefixs", OrderBy: "id"},
	"file-uploads":        {Table: "file_uploads", OrderBy: "fu_id"},
	"form-allocate":       {Table: "form_allocate", OrderBy: "allocate_pk_id"},
	"form-extend":         {Table: "form_extend", OrderBy: "extend_pk_id"},
	"form-new-findings":   {Table: "form_new_findings", OrderBy: "findings_pk_id"},
	"form-research-owner": {Table: "form_research_owner", OrderBy: "owner_pk_id"},
	"form-research-plan":  {Table: "form_research_plan", OrderBy: "plan_pk_id"},
	"form-utilization":    {Table: "form_utilization", OrderBy: "util_pk_id"},
	"pivot":               {Table: "pivot", OrderBy: "pivot_id"},
	"psu-roles":           {Table: "psu_roles", OrderBy: "roles_id"},
	"psu-user-login":      {Table: "psu_user_login", OrderBy: "user_id"},
	"psu-user-profile":    {Table: "psu_user_profile", OrderBy: "created_at"},
	"researcher":          {Table: "researcher", OrderBy: "researcher_pk_id"},
	"session":             {Table: "session", OrderBy: "session_id"},
	"users":               {Table: "users", OrderBy: "user_pk_id"},
}

// MasterService — сервис мастер-выборок.
type MasterService struct {
	repo repository.MasterRepository
}

// NewMasterService создаёт сервис мастер-выборок.
func NewMasterService(repo repository.MasterRepository) *MasterService {
	return &MasterService{repo: repo}
}

// List возвращает все строки сущности slug. Неизвестный slug — ErrNotFound.
func (s *MasterService) List(ctx context.Context, slug string) ([]map[string]any, error) {
	entity, ok := MasterEntities[slug]
	if !ok {
		return nil, fmt.Errorf("%w: сущность %q", ErrNotFound, slug)
	}

	rows, err := s.repo.List(ctx, entity.Table, entity.OrderBy)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Slugs возвращает поддерживаемые slug в алфавитном порядке.
func (s *MasterService) Slugs() []string {
	slugs := make([]string, 0, len(MasterEntities))
	for slug := range MasterEntities {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
