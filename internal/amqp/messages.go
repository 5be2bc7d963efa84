package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Routing keys for bill lifecycle events.
const (
	KeyBillCreated = "bill.created"
	KeyBillDeleted = "bill.deleted"
)

// ErrDiscard tells the consumer to drop a message without requeueing.
var ErrDiscard = errors.New("discard message")

// BillEvent notifies downstream consumers that a bill changed. It
// carries ids only, consumers fetch the current state from storage.
type BillEvent struct {
	BillID    int64     `json:"bill_id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBillEvent(billID, roomID, userID int64) *BillEvent {
	return &BillEvent{BillID: billID, RoomID: roomID, UserID: userID, Timestamp: time.Now()}
}

func (e *BillEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func BillEventFromJSON(data []byte) (*BillEvent, error) {
	var e BillEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ParseJob asks the worker to extract line items from an uploaded
// receipt image. ImageKey identifies the blob, the result is stored
// under the same key.
type ParseJob struct {
	ImageKey    string    `json:"image_key"`
	RoomID      int64     `json:"room_id"`
	RequestedBy int64     `json:"requested_by"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewParseJob(imageKey string, roomID, requestedBy int64) *ParseJob {
	return &ParseJob{ImageKey: imageKey, RoomID: roomID, RequestedBy: requestedBy, Timestamp: time.Now()}
}

func (j *ParseJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

func ParseJobFromJSON(data []byte) (*ParseJob, error) {
	var j ParseJob
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	if j.ImageKey == "" {
		return nil, errors.New("parse job missing image key")
	}
	return &j, nil
}
