package handlers

import (
	"net/http"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/service"
)

type categoryRequest struct {
	Name     string                 `json:"name"`
	Type     models.TransactionType `json:"type"`
	ParentID *int64                 `json:"parent_id"`
}

func (req categoryRequest) category(r *http.Request, id int64) *models.Category {
	return &models.Category{
		ID:       id,
		UserID:   middleware.UserID(r.Context()),
		Name:     req.Name,
		Type:     req.Type,
		ParentID: req.ParentID,
	}
}

func CreateCategory(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "create category")
			return
		}
		created, err := catalog.CreateCategory(r.Context(), req.category(r, 0))
		if err != nil {
			writeError(w, r, err, "create category")
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func GetCategories(store db.CategoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := store.ListCategories(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "list categories")
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

func UpdateCategory(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "category_id")
		if err != nil {
			writeError(w, r, err, "update category")
			return
		}
		var req categoryRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "update category")
			return
		}
		updated, err := catalog.UpdateCategory(r.Context(), req.category(r, id))
		if err != nil {
			writeError(w, r, err, "update category")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteCategory(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "category_id")
		if err != nil {
			writeError(w, r, err, "delete category")
			return
		}
		if err := catalog.DeleteCategory(r.Context(), middleware.UserID(r.Context()), id); err != nil {
			writeError(w, r, err, "delete category")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
