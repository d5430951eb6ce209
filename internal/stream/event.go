package stream

// Event is one self-delimited progress record on an augmentation stream.
// Per-slot events carry index/total; the terminal record is always a single
// done or error event.
type Event struct {
	Event       string `json:"event"`
	Index       *int   `json:"index,omitempty"`
	Total       int    `json:"total,omitempty"`
	Done        int    `json:"done,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	FrameB64    string `json:"frame_b64,omitempty"`
	AssetURL    string `json:"asset_url,omitempty"`
	TotalFrames int    `json:"total_frames,omitempty"`
	Message     string `json:"message,omitempty"`
}

func idx(i int) *int { return &i }

func Submitted(i, total int, taskID string) Event {
	return Event{Event: "submitted", Index: idx(i), Total: total, TaskID: taskID}
}

func SubmitError(i, total int, message string) Event {
	return Event{Event: "submit_error", Index: idx(i), Total: total, Message: message}
}

func Polling(i, total int, taskID string) Event {
	return Event{Event: "polling", Index: idx(i), Total: total, TaskID: taskID}
}

func Downloading(i, total int, taskID string) Event {
	return Event{Event: "downloading", Index: idx(i), Total: total, TaskID: taskID}
}

// Frame carries the finished asset for one slot. FrameB64 holds the raw
// payload when the download succeeded; AssetURL is always present so a
// caller can re-fetch (or fetch for the first time after a degraded
// download) on its side.
func Frame(i, total int, prompt, frameB64, assetURL string) Event {
	return Event{Event: "frame", Index: idx(i), Total: total, Prompt: prompt, FrameB64: frameB64, AssetURL: assetURL}
}

func FrameError(i, total int, message string) Event {
	return Event{Event: "frame_error", Index: idx(i), Total: total, Message: message}
}

func Progress(done, total int) Event {
	return Event{Event: "progress", Done: done, Total: total}
}

func DoneEvent(totalFrames int, message string) Event {
	return Event{Event: "done", TotalFrames: totalFrames, Message: message}
}

func ErrorEvent(message string) Event {
	return Event{Event: "error", Message: message}
}
