package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomvassey/foyer-core/internal/deviceauth"
	"github.com/tomvassey/foyer-core/internal/report"
)

// createReportRequest is the request body for POST /reports.
type createReportRequest struct {
	Category report.Category `json:"category"`
	Title    string          `json:"title"`
	Detail   string          `json:"detail,omitempty"`
	Location string          `json:"location,omitempty"`
}

// readCapability maps a report category to the capability needed to list it.
func readCapability(c report.Category) deviceauth.Capability {
	if c == report.CategoryIssue {
		return deviceauth.CapReportIssueRead
	}
	return deviceauth.CapReportFindRead
}

// writeCapability maps a report category to the capability needed to file
// or resolve it.
func writeCapability(c report.Category) deviceauth.Capability {
	if c == report.CategoryIssue {
		return deviceauth.CapReportIssueWrite
	}
	return deviceauth.CapReportFindWrite
}

// handleListReports returns reports the authenticated device may see.
//
// A device sees only the categories its roles grant. When no category
// filter is given, the listing is narrowed to the readable ones rather
// than rejected, so a housekeeping scanner's report screen works
// without knowing the authorisation model.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	device := deviceFromContext(r.Context())
	if device == nil {
		writeError(w, http.StatusUnauthorized, ErrCodeDeviceTokenInvalid, "missing device identity")
		return
	}

	filter := report.Filter{
		Status: report.Status(r.URL.Query().Get("status")),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}

	canFind := deviceauth.HasCapability(device, deviceauth.CapReportFindRead)
	canIssue := deviceauth.HasCapability(device, deviceauth.CapReportIssueRead)

	if categoryStr := r.URL.Query().Get("category"); categoryStr != "" {
		category := report.Category(categoryStr)
		if !report.IsValidCategory(category) {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidCategory, "unknown report category")
			return
		}
		if !deviceauth.HasCapability(device, readCapability(category)) {
			writeError(w, http.StatusForbidden, ErrCodeRoleForbidden,
				"device roles do not permit reading this category")
			return
		}
		filter.Category = category
	} else {
		switch {
		case canFind && canIssue:
			// Unfiltered; device may read everything.
		case canFind:
			filter.Category = report.CategoryFind
		case canIssue:
			filter.Category = report.CategoryIssue
		default:
			writeError(w, http.StatusForbidden, ErrCodeRoleForbidden,
				"device roles do not permit reading reports")
			return
		}
	}

	reports, err := s.reports.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

// handleCreateReport files a new report on behalf of the device.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	device := deviceFromContext(r.Context())
	if device == nil {
		writeError(w, http.StatusUnauthorized, ErrCodeDeviceTokenInvalid, "missing device identity")
		return
	}

	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !report.IsValidCategory(req.Category) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidCategory, "unknown report category")
		return
	}
	if !deviceauth.HasCapability(device, writeCapability(req.Category)) {
		writeError(w, http.StatusForbidden, ErrCodeRoleForbidden,
			"device roles do not permit filing this category")
		return
	}

	rep := &report.Report{
		Category:   req.Category,
		Title:      req.Title,
		Detail:     req.Detail,
		Location:   req.Location,
		ReportedBy: device.DeviceID,
	}
	if err := s.reports.Create(r.Context(), rep); err != nil {
		writeServiceError(w, err)
		return
	}

	s.notifyReport(rep)
	if s.telemetry != nil {
		s.telemetry.WriteReportFiled(device.DeviceID, string(rep.Category))
	}

	writeJSON(w, http.StatusCreated, rep)
}

// handleResolveReport marks an open report as resolved.
func (s *Server) handleResolveReport(w http.ResponseWriter, r *http.Request) {
	device := deviceFromContext(r.Context())
	if device == nil {
		writeError(w, http.StatusUnauthorized, ErrCodeDeviceTokenInvalid, "missing device identity")
		return
	}

	reportID := chi.URLParam(r, "id")

	rep, err := s.reports.GetByID(r.Context(), reportID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deviceauth.HasCapability(device, writeCapability(rep.Category)) {
		writeError(w, http.StatusForbidden, ErrCodeRoleForbidden,
			"device roles do not permit resolving this category")
		return
	}

	if err := s.reports.Resolve(r.Context(), reportID); err != nil {
		writeServiceError(w, err)
		return
	}

	resolved, err := s.reports.GetByID(r.Context(), reportID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.notifyReport(resolved)
	writeJSON(w, http.StatusOK, resolved)
}
