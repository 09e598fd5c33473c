package api

type ScanEvent struct {
	ID          string `json:"id"`
	ReaderID    string `json:"readerID"`
	UID         string `json:"uid"`
	Verified    bool   `json:"verified"`
	StudentID   string `json:"studentID,omitempty"`
	StudentName string `json:"studentName,omitempty"`
	Department  string `json:"department,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type GetScanTimelineResponse struct {
	Events []ScanEvent `json:"events"`
}

type HealthResponse struct {
	Status           string         `json:"status"`
	Timestamp        string         `json:"timestamp"`
	Services         HealthServices `json:"services"`
	WebsocketClients int            `json:"websocket_clients"`
}

type HealthServices struct {
	NFCReader  string `json:"nfc_reader"`
	Blockchain string `json:"blockchain"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
