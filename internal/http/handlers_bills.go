package http

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"splitperfect/internal/services"
)

// handleUploadReceipt accepts a multipart image upload and queues it
// for parsing. The returned key doubles as the bill image URL.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	roomID, err := strconv.ParseInt(r.FormValue("room_id"), 10, 64)
	if err != nil || roomID <= 0 {
		respondError(w, http.StatusBadRequest, "room_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && contentType != "text/plain" {
		respondError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	key, err := s.bills.UploadReceipt(r.Context(), currentUserID(r), roomID, data, ext)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, uploadResponse{
		ImageKey: key,
		Message:  "image uploaded successfully",
	})
}

// handleParseReceipt extracts and parses a receipt image in one call,
// storing nothing. The client reviews the items before creating the
// bill.
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && contentType != "text/plain" {
		respondError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	parsed, err := s.bills.Parse(r.Context(), data)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, parsed)
}

// handleParsedReceipt returns the worker's parse result for an
// uploaded image, 404 while the job is still pending.
func (s *Server) handleParsedReceipt(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "image key is required")
		return
	}

	parsed, err := s.bills.ParsedReceipt(r.Context(), key)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, parsed)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req billCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RoomID <= 0 {
		respondError(w, http.StatusBadRequest, "room_id is required")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "at least one item is required")
		return
	}

	items := make([]services.ItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = services.ItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
			SharedBy:    item.SharedBy,
		}
	}

	bill, err := s.bills.Create(r.Context(), currentUserID(r), req.RoomID, req.ImageURL, items)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toBillResponse(*bill))
}

func (s *Server) handleRoomBills(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	bills, err := s.bills.ListForRoom(r.Context(), currentUserID(r), roomID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]billResponse, len(bills))
	for i, bill := range bills {
		out[i] = toBillResponse(bill)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	bill, err := s.bills.Get(r.Context(), currentUserID(r), billID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBillResponse(*bill))
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bills.Delete(r.Context(), currentUserID(r), billID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "bill deleted"})
}
