package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/tryfix/log"
)

type Err struct {
	Err string `json:"error"`
}

type keyVal struct {
	Key   interface{} `json:"key"`
	Value interface{} `json:"value"`
}

type handler struct {
	logger   log.Logger
	registry Registry
}

func (h *handler) encodeAll(w http.ResponseWriter, i Iterator) error {
	keyVals := make([]keyVal, 0)
	for ; i.Valid(); i.Next() {
		k, err := i.Key()
		if err != nil {
			h.logger.Error(err)
			continue
		}

		v, err := i.Value()
		if err != nil {
			h.logger.Error(err)
			continue
		}

		keyVals = append(keyVals, keyVal{Key: k, Value: v})
	}

	return json.NewEncoder(w).Encode(keyVals)
}

func (h *handler) writeError(w http.ResponseWriter, e error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(e, ErrStoreNotFound), errors.Is(e, ErrKeyNotFound):
		status = http.StatusNotFound
	case errors.Is(e, ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Err{Err: e.Error()}); err != nil {
		h.logger.Error(err)
	}
}

func (h *handler) stores(w http.ResponseWriter, _ *http.Request) {
	list := h.registry.List()
	if list == nil {
		list = []string{}
	}

	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.logger.Error(err)
	}
}

func (h *handler) all(w http.ResponseWriter, r *http.Request) {
	stor, err := h.registry.Store(mux.Vars(r)[`store`])
	if err != nil {
		h.writeError(w, err)
		return
	}

	i, err := stor.GetAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer i.Close()

	if err := h.encodeAll(w, i); err != nil {
		h.logger.Error(err)
	}
}

func (h *handler) item(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stor, err := h.registry.Store(vars[`store`])
	if err != nil {
		h.writeError(w, err)
		return
	}

	key, err := stor.KeyEncoder().Decode([]byte(vars[`key`]))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(Err{Err: fmt.Sprintf(`invalid key: %s`, err)})
		return
	}

	data, err := MustGet(r.Context(), stor, key)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(keyVal{Key: key, Value: data}); err != nil {
		h.logger.Error(err)
	}
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(`Content-Type`, `application/json`)
		next.ServeHTTP(w, r)
	})
}

// MakeEndpoints builds the store query server. The caller owns starting and
// shutting it down.
func MakeEndpoints(host string, registry Registry, logger log.Logger) *http.Server {
	r := mux.NewRouter()
	r.Use(jsonContent)

	h := &handler{logger: logger, registry: registry}
	r.HandleFunc(`/stores`, h.stores).Methods(http.MethodGet)
	r.HandleFunc(`/stores/{store}`, h.all).Methods(http.MethodGet)
	r.HandleFunc(`/stores/{store}/{key}`, h.item).Methods(http.MethodGet)

	return &http.Server{
		Addr:    host,
		Handler: handlers.CORS()(r),
	}
}
