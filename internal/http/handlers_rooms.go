package http

import (
	"net/http"
)

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.rooms.Create(r.Context(), currentUserID(r), req.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toRoomResponse(*info))
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req roomJoinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Secret == "" {
		respondError(w, http.StatusBadRequest, "secret is required")
		return
	}

	info, err := s.rooms.Join(r.Context(), currentUserID(r), req.Secret)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRoomResponse(*info))
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	infos, err := s.rooms.List(r.Context(), currentUserID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]roomResponse, len(infos))
	for i, info := range infos {
		out[i] = toRoomResponse(info)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, members, err := s.rooms.Get(r.Context(), currentUserID(r), roomID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := roomWithMembersResponse{
		roomResponse: toRoomResponse(storageRoomInfo(room, len(members))),
		Members:      make([]userResponse, len(members)),
	}
	for i, m := range members {
		out.Members[i] = toUserResponse(m)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRoomSummary(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.rooms.Summary(r.Context(), currentUserID(r), roomID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSummaryResponse(summary))
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.rooms.Delete(r.Context(), currentUserID(r), roomID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "room deleted"})
}
