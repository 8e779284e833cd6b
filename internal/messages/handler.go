package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/portfolio/internal/telemetry/metrics"
	"github.com/2beens/portfolio/pkg"

	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	maxPageSize     = 100
	countryLookupTO = 2 * time.Second
)

type messagesRepo interface {
	Add(ctx context.Context, m *Message) error
	Page(ctx context.Context, page, size int) ([]*Message, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

type countryResolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

type senderLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

type Handler struct {
	repo           messagesRepo
	geoIp          countryResolver
	limiter        senderLimiter
	perMinLimit    int
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewHandler(
	repo messagesRepo,
	geoIp countryResolver,
	limiter senderLimiter,
	perMinLimit int,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:           repo,
		geoIp:          geoIp,
		limiter:        limiter,
		perMinLimit:    perMinLimit,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/messages", handler.handleNew).Methods("POST", "OPTIONS").Name("new-message")
	router.HandleFunc("/messages/page/{page}/size/{size}", handler.handlePage).Methods("GET").Name("messages-page")
	router.HandleFunc("/messages/unread/count", handler.handleUnreadCount).Methods("GET").Name("messages-unread-count")
	router.HandleFunc("/messages/{id:[0-9]+}/read", handler.handleMarkRead).Methods("PATCH").Name("mark-message-read")
	router.HandleFunc("/messages/{id:[0-9]+}", handler.handleDelete).Methods("DELETE").Name("delete-message")
}

func (handler *Handler) handleNew(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	sourceKey := pkg.SourceKey(r)
	if handler.limiter != nil && handler.perMinLimit > 0 {
		res, err := handler.limiter.Allow(r.Context(), "messages::"+sourceKey, redis_rate.PerMinute(handler.perMinLimit))
		if err != nil {
			log.Errorf("messages rate limiter: %s", err)
			http.Error(w, "rate limit internal error", http.StatusInternalServerError)
			return
		}
		if res.Allowed == 0 {
			handler.metricsManager.CounterRateLimitedRequests.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			http.Error(w, "too many messages, try again later", http.StatusTooManyRequests)
			return
		}
	}

	var msg Message
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := pkg.DecodeJSONBody(w, r, &msg); err != nil {
			log.Debugf("new message, decode body: %s", err)
			http.Error(w, "invalid message payload", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "parse form error", http.StatusBadRequest)
			return
		}
		msg = Message{
			Name:    r.Form.Get("name"),
			Email:   r.Form.Get("email"),
			Subject: r.Form.Get("subject"),
			Body:    r.Form.Get("body"),
		}
	}

	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	if err := msg.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	msg.ID = 0
	msg.Read = false
	msg.CreatedAt = handler.now().UTC()
	msg.Country = handler.senderCountry(r)

	if err := handler.repo.Add(r.Context(), &msg); err != nil {
		log.Errorf("store new message: %s", err)
		http.Error(w, "failed to store message", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterMessages.Inc()
	pkg.WriteJSON(w, http.StatusCreated, map[string]int{"id": msg.ID})
}

// senderCountry never fails the request, an unknown country is left empty.
func (handler *Handler) senderCountry(r *http.Request) string {
	if handler.geoIp == nil {
		return ""
	}

	ip, err := pkg.ReadUserIP(r)
	if err != nil {
		log.Debugf("new message, read user ip: %s", err)
		return ""
	}

	ctx, cancel := context.WithTimeout(r.Context(), countryLookupTO)
	defer cancel()

	country, err := handler.geoIp.Country(ctx, ip)
	if err != nil {
		log.Warnf("new message, resolve country for %s: %s", ip, err)
		return ""
	}
	return country
}

func (handler *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	page, err := strconv.Atoi(vars["page"])
	if err != nil || page < 1 {
		http.Error(w, "invalid parameter <page>", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil || size < 1 {
		http.Error(w, "invalid parameter <size>", http.StatusBadRequest)
		return
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	msgs, err := handler.repo.Page(r.Context(), page, size)
	if err != nil {
		log.Errorf("get messages page: %s", err)
		http.Error(w, "failed to get messages", http.StatusInternalServerError)
		return
	}

	if len(msgs) == 0 {
		pkg.WriteJSONResponseOK(w, "[]")
		return
	}

	msgsJson, err := json.Marshal(msgs)
	if err != nil {
		log.Errorf("marshal messages: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(msgsJson))
}

func (handler *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := handler.repo.UnreadCount(r.Context())
	if err != nil {
		log.Errorf("count unread messages: %s", err)
		http.Error(w, "failed to count messages", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (handler *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	if err := handler.repo.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("mark message %d read: %s", id, err)
		http.Error(w, "failed to update message", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("read:%d", id))
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete message %d: %s", id, err)
		http.Error(w, "failed to delete message", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}
