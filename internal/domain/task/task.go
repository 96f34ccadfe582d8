package task

import "encoding/json"

// Task is a unit of deferred work placed on the retry queue.
type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
}

func marshalTask(t interface{}) ([]byte, error) {
	return json.Marshal(t)
}

func UnmarshalTask[T Task](data []byte) (T, error) {
	var t T
	err := json.Unmarshal(data, &t)
	return t, err
}
