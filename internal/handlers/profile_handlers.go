package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"rekindle/internal/api"
	"rekindle/internal/engine/actors"
	"rekindle/internal/middleware"
	"rekindle/internal/models"
	"rekindle/internal/utils"
)

// multipartMemory is how much of a form is buffered in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// HandleSaveDetails stores the caller's patient profile from a multipart
// form, replacing any earlier submission.
func (s *Server) HandleSaveDetails() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := viewerID(r)
		if s.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				middleware.WriteError(w, utils.NewInvalidInputError("Upload exceeds size limit"))
				return
			}
			middleware.WriteError(w, utils.NewInvalidInputError("Invalid multipart form"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		details := &models.Details{
			UserID:         userID,
			PatientName:    r.FormValue("patientName"),
			PatientAbout:   r.FormValue("patientAbout"),
			PatientDisease: r.FormValue("patientDisease"),
		}

		if raw := strings.TrimSpace(r.FormValue("guardians")); raw != "" {
			var inputs []api.GuardianInput
			if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
				middleware.WriteError(w, utils.NewInvalidInputError("guardians must be a JSON array"))
				return
			}
			for i, in := range inputs {
				g := models.Guardian{Name: in.Name, Relationship: in.Relationship, Contact: in.Contact}
				photo, err := readPhoto(r.MultipartForm, fmt.Sprintf("guardians[%d][photo]", i))
				if err != nil {
					middleware.WriteError(w, err)
					return
				}
				g.Photo = photo
				details.Guardians = append(details.Guardians, g)
			}
		}

		familyPhoto, err := readPhoto(r.MultipartForm, "familyPhoto")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		details.FamilyPhoto = familyPhoto

		if _, err := s.ask(s.Engine.GetProfileActor(), &actors.SaveDetailsMsg{Details: details}, "profile"); err != nil {
			middleware.WriteError(w, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, models.StatusResponse{Success: true, Message: "Details saved successfully"})
	}
}

// readPhoto returns the named file part, or nil when the form has none.
func readPhoto(form *multipart.Form, field string) (*models.Photo, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, utils.NewInvalidInputError("Unreadable upload: " + field)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, utils.NewInvalidInputError("Unreadable upload: " + field)
	}
	if len(data) == 0 {
		return nil, nil
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &models.Photo{Data: data, ContentType: contentType}, nil
}

func (s *Server) loadDetails(r *http.Request) (*models.Details, error) {
	result, err := s.ask(s.Engine.GetProfileActor(), &actors.GetDetailsMsg{UserID: viewerID(r)}, "profile")
	if err != nil {
		return nil, err
	}
	details, ok := result.(*models.Details)
	if !ok {
		return nil, unexpected(result)
	}
	return details, nil
}

// HandleFamilyPhoto streams the stored family photo with its content type.
func (s *Server) HandleFamilyPhoto() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := s.loadDetails(r)
		if err != nil && !utils.IsErrorCode(err, utils.ErrNotFound) {
			middleware.WriteError(w, err)
			return
		}
		if details == nil || details.FamilyPhoto == nil {
			middleware.WriteError(w, utils.NewNotFoundError("Family photo not found"))
			return
		}

		w.Header().Set("Content-Type", details.FamilyPhoto.ContentType)
		w.Header().Set("Cache-Control", "private, max-age=300")
		w.WriteHeader(http.StatusOK)
		w.Write(details.FamilyPhoto.Data)
	}
}

// HandleGuardians lists the caller's guardians with inline photos.
func (s *Server) HandleGuardians() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := s.loadDetails(r)
		if err != nil && !utils.IsErrorCode(err, utils.ErrNotFound) {
			middleware.WriteError(w, err)
			return
		}
		if details == nil || len(details.Guardians) == 0 {
			middleware.WriteError(w, utils.NewNotFoundError("No guardians found"))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.GuardiansResponse{Guardians: api.NewGuardianViews(details.Guardians)})
	}
}
