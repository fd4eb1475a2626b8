package handlers

import (
	"net/http"
	"slices"
	"strings"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/util"
	"spendwise-server/src/worker"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func GetAllUsers(store db.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := store.ListUsers(r.Context())
		if err != nil {
			writeError(w, r, err, "list users")
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// AdminCreateUser provisions an account. Self sign-up is handled by the
// external auth service.
func AdminCreateUser(store db.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email       string      `json:"email"`
			DisplayName string      `json:"display_name"`
			Password    string      `json:"password"`
			Role        models.Role `json:"role"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "create user")
			return
		}

		email := util.NormalizeEmail(req.Email)
		if !util.ValidateEmail(email) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid email format"))
			return
		}
		if !util.ValidatePassword(req.Password) {
			writeJSON(w, http.StatusBadRequest, errorBody(util.PasswordRule))
			return
		}
		if req.Role == "" {
			req.Role = models.RoleUser
		}
		if !req.Role.Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody("role must be user or admin"))
			return
		}
		name := strings.TrimSpace(req.DisplayName)
		if name == "" {
			name = email
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, r, err, "hash password")
			return
		}
		created, err := store.CreateUser(r.Context(), &models.User{
			Email:        email,
			DisplayName:  name,
			PasswordHash: hash,
			Role:         req.Role,
		})
		if err != nil {
			writeError(w, r, err, "create user")
			return
		}
		logger().Info("user created by admin",
			zap.Int64("admin_id", middleware.UserID(r.Context())),
			zap.Int64("user_id", created.ID),
			zap.String("role", string(created.Role)),
		)
		writeJSON(w, http.StatusCreated, created)
	}
}

// targetUser reads {user_id} and refuses to let admins act on themselves.
func targetUser(w http.ResponseWriter, r *http.Request, action string) (int64, bool) {
	id, err := parseID(r, "user_id")
	if err != nil {
		writeError(w, r, err, action)
		return 0, false
	}
	if id == middleware.UserID(r.Context()) {
		writeJSON(w, http.StatusBadRequest, errorBody("admins cannot "+action+" themselves"))
		return 0, false
	}
	return id, true
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

func AdminSetRole(store db.UserStore, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := targetUser(w, r, "change the role of")
		if !ok {
			return
		}
		var req roleRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "set role")
			return
		}
		if !req.Role.Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody("role must be user or admin"))
			return
		}
		if err := store.SetUserRole(r.Context(), id, req.Role); err != nil {
			writeError(w, r, err, "set role")
			return
		}
		cache.InvalidateUser(id)
		logger().Info("user role changed", zap.Int64("user_id", id), zap.String("role", string(req.Role)))
		writeMessage(w, http.StatusOK, "role updated")
	}
}

func setLocked(store db.UserStore, cache *db.Cache, locked bool) http.HandlerFunc {
	action := "unlock"
	if locked {
		action = "lock"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := targetUser(w, r, action)
		if !ok {
			return
		}
		if err := store.SetUserLocked(r.Context(), id, locked); err != nil {
			writeError(w, r, err, action+" user")
			return
		}
		cache.InvalidateUser(id)
		logger().Info("user lock changed",
			zap.Int64("admin_id", middleware.UserID(r.Context())),
			zap.Int64("user_id", id),
			zap.Bool("locked", locked),
		)
		writeMessage(w, http.StatusOK, "user "+action+"ed")
	}
}

func LockUser(store db.UserStore, cache *db.Cache) http.HandlerFunc {
	return setLocked(store, cache, true)
}

func UnlockUser(store db.UserStore, cache *db.Cache) http.HandlerFunc {
	return setLocked(store, cache, false)
}

func AdminDeleteUser(store db.UserStore, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := targetUser(w, r, "delete")
		if !ok {
			return
		}
		if err := store.DeleteUser(r.Context(), id); err != nil {
			writeError(w, r, err, "delete user")
			return
		}
		cache.InvalidateUser(id)
		logger().Info("user deleted by admin",
			zap.Int64("admin_id", middleware.UserID(r.Context())),
			zap.Int64("user_id", id),
		)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearCache drops one cache group, or everything for "all".
func ClearCache(cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "cache_name")
		switch {
		case name == "all":
			cache.ClearAll()
		case slices.Contains(db.CacheGroups, name):
			cache.ClearTag(name)
		default:
			writeJSON(w, http.StatusBadRequest, errorBody("unknown cache "+name))
			return
		}
		logger().Info("cache cleared", zap.String("cache", name), zap.Int64("admin_id", middleware.UserID(r.Context())))
		writeMessage(w, http.StatusOK, "cache cleared: "+name)
	}
}

// GetQueueStats reports the budget evaluation queue.
func GetQueueStats(queue *worker.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, queue.Stats())
	}
}
