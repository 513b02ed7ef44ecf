package serv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-http-utils/headers"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sqlcollection/sqlcollection/core"
)

const maxBodySize = 4 << 20

type findRequest struct {
	Query      any  `bson:"query"`
	Projection any  `bson:"projection"`
	Lookup     any  `bson:"lookup"`
	AutoLookup int  `bson:"auto_lookup"`
	Sort       any  `bson:"sort"`
	Limit      int  `bson:"limit"`
	Skip       int  `bson:"skip"`
	BatchSize  int  `bson:"batch_size"`
	Count      bool `bson:"count"`

	// WithLimitAndSkip bounds the count by limit and skip
	WithLimitAndSkip bool `bson:"with_limit_and_skip"`
}

type insertRequest struct {
	Document any `bson:"document"`
	Lookup   any `bson:"lookup"`
}

type updateRequest struct {
	Query      any  `bson:"query"`
	Update     any  `bson:"update"`
	Lookup     any  `bson:"lookup"`
	AutoLookup int  `bson:"auto_lookup"`
	Upsert     bool `bson:"upsert"`
}

type deleteRequest struct {
	Query      any `bson:"query"`
	Lookup     any `bson:"lookup"`
	AutoLookup int `bson:"auto_lookup"`
}

// errBadBody marks request bodies that are not valid Extended JSON
var errBadBody = errors.New("invalid request body")

func healthCheckHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.load()

		ctx := r.Context()
		if t := s.conf.DB.PingTimeout; t > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}

		if err := s.cdb.Ping(ctx); err != nil {
			s.log.Errorf("health check: %s", err)
			renderJSON(w, http.StatusServiceUnavailable, bson.D{{Key: "error", Value: "database unreachable"}})
			return
		}
		renderData(w, "ok")
	})
}

func collectionsHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renderData(w, s1.DB().Collections())
	})
}

func describeHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := &core.DescribeOptions{}
		if v := r.URL.Query().Get("auto_lookup"); v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				renderErr(s1, w, fmt.Errorf("%w: auto_lookup: %v", core.ErrWrongParameter, err))
				return
			}
			opts.AutoLookup = n
		}

		d, err := s1.DB().Describe(r.Context(), chi.URLParam(r, "name"), opts)
		if err != nil {
			renderErr(s1, w, err)
			return
		}
		renderData(w, d)
	})
}

func findHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req findRequest
		if err := parseBody(r, &req); err != nil {
			renderErr(s1, w, err)
			return
		}

		docs, n, err := find(r.Context(), s1, chi.URLParam(r, "name"), req)
		if err != nil {
			renderErr(s1, w, err)
			return
		}

		if req.Count {
			renderData(w, n)
			return
		}
		if docs == nil {
			docs = []core.Document{}
		}
		renderData(w, docs)
	})
}

func find(ctx context.Context, s1 *Service, name string, req findRequest) ([]core.Document, int64, error) {
	c, err := s1.DB().Collection(name)
	if err != nil {
		return nil, 0, err
	}

	lookups, err := core.DecodeLookups(req.Lookup)
	if err != nil {
		return nil, 0, err
	}

	cur, err := c.Find(ctx, req.Query, core.Find().
		SetProjection(req.Projection).
		SetLookup(lookups).
		SetAutoLookup(req.AutoLookup))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx) //nolint:errcheck

	keys, err := core.ParseSort(req.Sort)
	if err != nil {
		return nil, 0, err
	}
	if len(keys) != 0 {
		cur.Sort(keys...)
	}
	if req.Limit != 0 {
		cur.Limit(req.Limit)
	}
	if req.Skip != 0 {
		cur.Skip(req.Skip)
	}
	if req.BatchSize != 0 {
		cur.BatchSize(req.BatchSize)
	}

	if req.Count {
		n, err := cur.Count(ctx, req.WithLimitAndSkip)
		return nil, n, err
	}

	docs, err := cur.All(ctx)
	return docs, int64(len(docs)), err
}

func insertOneHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req insertRequest
		if err := parseBody(r, &req); err != nil {
			renderErr(s1, w, err)
			return
		}

		c, err := s1.DB().Collection(chi.URLParam(r, "name"))
		if err != nil {
			renderErr(s1, w, err)
			return
		}

		lookups, err := core.DecodeLookups(req.Lookup)
		if err != nil {
			renderErr(s1, w, err)
			return
		}

		res, err := c.InsertOne(r.Context(), req.Document, &core.InsertOneOptions{Lookup: lookups})
		if err != nil {
			renderErr(s1, w, err)
			return
		}
		renderJSON(w, http.StatusCreated, bson.D{{Key: "data", Value: bson.D{
			{Key: "inserted_id", Value: res.InsertedID},
		}}})
	})
}

func updateManyHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		if err := parseBody(r, &req); err != nil {
			renderErr(s1, w, err)
			return
		}

		c, err := s1.DB().Collection(chi.URLParam(r, "name"))
		if err != nil {
			renderErr(s1, w, err)
			return
		}

		lookups, err := core.DecodeLookups(req.Lookup)
		if err != nil {
			renderErr(s1, w, err)
			return
		}

		res, err := c.UpdateMany(r.Context(), req.Query, req.Update, &core.UpdateOptions{
			Upsert:     req.Upsert,
			Lookup:     lookups,
			AutoLookup: req.AutoLookup,
		})
		if err != nil {
			renderErr(s1, w, err)
			return
		}
		renderData(w, bson.D{
			{Key: "matched_count", Value: res.MatchedCount},
			{Key: "modified_count", Value: res.ModifiedCount},
		})
	})
}

func deleteManyHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req deleteRequest
		if err := parseBody(r, &req); err != nil {
			renderErr(s1, w, err)
			return
		}

		c, err := s1.DB().Collection(chi.URLParam(r, "name"))
		if err != nil {
			renderErr(s1, w, err)
			return
		}

		lookups, err := core.DecodeLookups(req.Lookup)
		if err != nil {
			renderErr(s1, w, err)
			return
		}

		res, err := c.DeleteMany(r.Context(), req.Query, &core.DeleteOptions{
			Lookup:     lookups,
			AutoLookup: req.AutoLookup,
		})
		if err != nil {
			renderErr(s1, w, err)
			return
		}
		renderData(w, bson.D{{Key: "deleted_count", Value: res.DeletedCount}})
	})
}

func reloadHandler(s1 *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s1.Reload(r.Context()); err != nil {
			renderErr(s1, w, err)
			return
		}
		renderData(w, s1.DB().Collections())
	})
}

// parseBody decodes an Extended JSON request body into v. An empty body
// leaves v untouched.
func parseBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := bson.UnmarshalExtJSON(body, false, v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func renderData(w http.ResponseWriter, v any) {
	renderJSON(w, http.StatusOK, bson.D{{Key: "data", Value: v}})
}

func renderJSON(w http.ResponseWriter, status int, v bson.D) {
	b, err := bson.MarshalExtJSON(v, false, false)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set(headers.ContentType, "application/json")
	w.WriteHeader(status)
	w.Write(b) //nolint:errcheck
}

func renderErr(s1 *Service, w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s1.load().log.Errorf("request failed: %s", err)
	}
	renderJSON(w, status, bson.D{{Key: "error", Value: err.Error()}})
}

// errorStatus maps document API errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownTable), errors.Is(err, core.ErrUnknownColumn):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAmbiguousLookup):
		return http.StatusConflict
	case errors.Is(err, core.ErrIntegrityViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrWrongParameter),
		errors.Is(err, core.ErrMissingField),
		errors.Is(err, core.ErrBadRequest),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
