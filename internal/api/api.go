package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/IlyasAtabaev731/market/internal/chat"
	"github.com/IlyasAtabaev731/market/internal/config"
	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/lib/jwt"
	"github.com/IlyasAtabaev731/market/internal/lib/logger"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type Storage interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateBio(ctx context.Context, id, bio string) error
	SetActive(ctx context.Context, id string, active bool) error

	SaveProduct(ctx context.Context, p *models.Product) error
	ViewProduct(ctx context.Context, id string) (*models.Product, error)
	SearchProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	SaveReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context) ([]models.Report, error)

	Ping(ctx context.Context) error
}

type Ledger interface {
	Transfer(ctx context.Context, senderID, receiverUsername string, amount decimal.Decimal) (string, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (string, error)
	OpenAccount(ctx context.Context, userID string) (decimal.Decimal, error)
	History(ctx context.Context, userID string) ([]models.Transaction, error)
	AllTransactions(ctx context.Context) ([]models.Transaction, error)
}

type APIServer struct {
	config    *config.Config
	logger    *slog.Logger
	server    *http.Server
	storage   Storage
	ledger    Ledger
	chat      *chat.Router
	validate  *validator.Validate
	jwtSecret []byte
}

func New(config *config.Config, logger *slog.Logger, storage Storage, ledger Ledger, chat *chat.Router, jwtSecret []byte) *APIServer {
	s := &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr: config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
		},
		storage:   storage,
		ledger:    ledger,
		chat:      chat,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		jwtSecret: jwtSecret,
	}
	s.configureRouter()

	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

// Stop drains HTTP requests and closes every chat connection.
// Hijacked websocket connections are not tracked by http.Server.
func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")

	s.chat.Shutdown()
	return s.server.Shutdown(ctx)
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.Use(logger.Middleware(s.logger))

	router.HandleFunc("/api/register", s.registerHandler()).Methods("POST")
	router.HandleFunc("/api/auth", s.authHandler()).Methods("POST")

	router.HandleFunc("/api/profile", s.authenticate(s.profileHandler())).Methods("GET")
	router.HandleFunc("/api/profile", s.authenticate(s.updateProfileHandler())).Methods("PUT")
	router.HandleFunc("/api/users", s.authenticate(s.usersHandler())).Methods("GET")

	router.HandleFunc("/api/balance", s.authenticate(s.balanceHandler())).Methods("GET")
	router.HandleFunc("/api/transfer", s.authenticate(s.transferHandler())).Methods("POST")
	router.HandleFunc("/api/deposit", s.authenticate(s.depositHandler())).Methods("POST")
	router.HandleFunc("/api/transactions", s.authenticate(s.transactionsHandler())).Methods("GET")
	router.HandleFunc("/api/dashboard", s.authenticate(s.dashboardHandler())).Methods("GET")

	router.HandleFunc("/api/products", s.authenticate(s.newProductHandler())).Methods("POST")
	router.HandleFunc("/api/products/{id}", s.viewProductHandler()).Methods("GET")
	router.HandleFunc("/api/search", s.searchHandler()).Methods("GET")

	router.HandleFunc("/api/reports", s.authenticate(s.reportHandler())).Methods("POST")

	router.HandleFunc("/api/admin", s.authenticate(s.requireAdmin(s.adminHandler()))).Methods("GET")
	router.HandleFunc("/api/admin/products/{id}", s.authenticate(s.requireAdmin(s.deleteProductHandler()))).Methods("DELETE")
	router.HandleFunc("/api/admin/users/{id}/deactivate", s.authenticate(s.requireAdmin(s.deactivateUserHandler()))).Methods("POST")

	router.HandleFunc("/ws", s.authenticate(s.chatHandler())).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", s.healthHandler()).Methods("GET")

	s.server.Handler = router
}

// pathID returns the {id} route variable when it is a well-formed uuid.
func pathID(r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

type userKey struct{}

func currentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey{}).(*models.User)
	return user
}

// authenticate accepts a bearer header, or a token query parameter for websocket upgrades.
func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")

		if tokenHeader := r.Header.Get("Authorization"); tokenHeader != "" {
			parts := strings.Split(tokenHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}
			tokenStr = parts[1]
		}

		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "token is missing")
			return
		}

		claims, err := jwt.ParseToken(tokenStr, string(s.jwtSecret))
		if err == nil {
			_, err = uuid.Parse(claims.UserID)
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := s.storage.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			s.logger.Error("Failed to load user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusForbidden, "account is deactivated")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	}
}

func (s *APIServer) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

func (s *APIServer) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.storage.Ping(r.Context()); err != nil {
			s.logger.Error("Health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type ErrorResponse struct {
	Errors string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Errors: msg})
}

// decode reads a JSON body into req and validates it.
const maxBodyBytes = 1 << 20

func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}

	return "invalid request: " + strings.Join(fields, ", ")
}
