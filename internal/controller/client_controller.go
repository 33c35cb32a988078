package controller

import (
	"net/http"
	"strconv"

	"github.com/unclebandit/crm-dispatch/internal/dto"
	"github.com/unclebandit/crm-dispatch/internal/service"
)

type ClientController struct {
	ClientService *service.ClientService
}

func (c *ClientController) CreateClient(w http.ResponseWriter, r *http.Request) {
	var body dto.ClientInput
	if err := decode(r, &body); err != nil {
		WriteError(w, r, err)
		return
	}
	client, err := c.ClientService.CreateClient(r.Context(), body)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (c *ClientController) ListClients(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	clients, pagination, err := c.ClientService.ListClients(r.Context(), page, pageSize)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       clients,
		"pagination": pagination,
	})
}

func (c *ClientController) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	client, err := c.ClientService.GetClient(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (c *ClientController) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var body dto.ClientInput
	if err := decode(r, &body); err != nil {
		WriteError(w, r, err)
		return
	}
	client, err := c.ClientService.UpdateClient(r.Context(), id, body)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (c *ClientController) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := c.ClientService.DeleteClient(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCommunications handles GET /clients/{id}/communications?limit=N.
func (c *ClientController) ListCommunications(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := c.ClientService.Communications(r.Context(), id, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}
