package retry

import "encoding/json"

// Recipient is one failed delivery still owed a retry attempt.
type Recipient struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Payload is the opaque envelope carried by a jobqueue.KindRetry job.
// scheduleId lives on the Job itself (jobqueue.Job.ScheduleID); everything
// else needed to resubmit the send lives here.
type Payload struct {
	Recipients []Recipient `json:"recipients"`
	Attempt    int         `json:"attempt"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	Category   string      `json:"category"`
}

func marshalPayload(p Payload) (string, error) {
	b, err := json.Marshal(p)
	return string(b), err
}

func unmarshalPayload(s string) (Payload, error) {
	var p Payload
	err := json.Unmarshal([]byte(s), &p)
	return p, err
}
