package replacements

import (
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// RequestDTO is the transport shape for one replacement request.
type RequestDTO struct {
	ID          uuid.UUID           `json:"id"`
	DeviceID    uuid.UUID           `json:"device_id"`
	DeviceIMEI  string              `json:"device_imei,omitempty"`
	RepairID    *uuid.UUID          `json:"repair_id,omitempty"`
	RequesterID uuid.UUID           `json:"requester_id"`
	Status      enums.RequestStatus `json:"status"`
	Reason      string              `json:"reason"`
	AdminNotes  *string             `json:"admin_notes,omitempty"`
	ResolvedBy  *uuid.UUID          `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func FromModel(r *models.ReplacementRequest) *RequestDTO {
	if r == nil {
		return nil
	}
	dto := &RequestDTO{
		ID:          r.ID,
		DeviceID:    r.DeviceID,
		RepairID:    r.RepairID,
		RequesterID: r.RequesterID,
		Status:      r.Status,
		Reason:      r.Reason,
		AdminNotes:  r.AdminNotes,
		ResolvedBy:  r.ResolvedBy,
		ResolvedAt:  r.ResolvedAt,
		CreatedAt:   r.CreatedAt,
	}
	if r.Device != nil {
		dto.DeviceIMEI = r.Device.IMEI
	}
	return dto
}
