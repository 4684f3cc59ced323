package queue

import (
	"encoding/json"
	"fmt"
)

const payloadKey = "payload"

// PayloadData wraps v as job data. The value is stored as a JSON string so it
// survives the queue with its types intact.
func PayloadData(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return map[string]interface{}{payloadKey: string(raw)}, nil
}

// DecodePayload reads back a value stored with PayloadData.
func DecodePayload(job *Job, v interface{}) error {
	raw, ok := job.Data[payloadKey].(string)
	if !ok {
		return fmt.Errorf("job %s has no payload", job.ID)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to unmarshal payload of job %s: %w", job.ID, err)
	}
	return nil
}
