package middleware

import (
	"context"
	"net/http"

	"github.com/emarket-io/emarket-backend/api/responses"
	"github.com/emarket-io/emarket-backend/internal/session"
	"github.com/emarket-io/emarket-backend/pkg/config"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/emarket-io/emarket-backend/pkg/logger"
)

type sessionCtxKey struct{}

// WithSession attaches a session handle to the context.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// SessionFromContext returns the request's session handle, or nil outside the
// session middleware.
func SessionFromContext(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(sessionCtxKey{}).(*session.Session); ok {
		return sess
	}
	return nil
}

// Session loads (or creates) the visitor session and commits it back to the
// store before the first byte of the response body is written, so a response
// never reports a mutation the store has not seen.
func Session(store session.Store, cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil {
				sessionID = cookie.Value
			}
			if sessionID == "" {
				sessionID = session.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			sess, err := session.New(sessionID, store)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create session"))
				return
			}

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			if err := sess.Load(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session"))
				return
			}

			ctx = WithSession(ctx, sess)

			committer := &sessionCommitter{
				ResponseWriter: w,
				sess:           sess,
				ctx:            ctx,
				logg:           logg,
			}

			next.ServeHTTP(committer, r.WithContext(ctx))
			committer.commit()
		})
	}
}

// sessionCommitter flushes dirty session state right before the response
// starts, and once more after the handler in case nothing was written.
type sessionCommitter struct {
	http.ResponseWriter
	sess      *session.Session
	ctx       context.Context
	logg      *logger.Logger
	committed bool
}

func (w *sessionCommitter) WriteHeader(status int) {
	w.commit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionCommitter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionCommitter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if !w.sess.Dirty() {
		return
	}
	if err := w.sess.Save(w.ctx); err != nil && w.logg != nil {
		w.logg.Error(w.ctx, "session.save_failed", err)
	}
}
