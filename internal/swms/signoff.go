package swms

import (
	"fmt"
	"strings"
	"time"
)

type SignOffMethod string

const (
	MethodManual SignOffMethod = "manual"
	MethodQR     SignOffMethod = "qr"
)

type SignOffState string

const (
	SignOffPending   SignOffState = "pending"
	SignOffPersisted SignOffState = "persisted"
)

// SignOffRef identifies a sign-off either by the local id it was given in a
// workspace (pending) or by the id the database assigned it (persisted).
// The state is carried explicitly; the id string is never inspected.
type SignOffRef struct {
	State SignOffState `json:"state"`
	ID    string       `json:"id"`
}

func PendingRef(localID string) SignOffRef {
	return SignOffRef{State: SignOffPending, ID: localID}
}

func PersistedRef(remoteID string) SignOffRef {
	return SignOffRef{State: SignOffPersisted, ID: remoteID}
}

func (r SignOffRef) IsPersisted() bool { return r.State == SignOffPersisted }

func (r SignOffRef) String() string {
	return string(r.State) + ":" + r.ID
}

// ParseSignOffRef reads the "state:id" form produced by String.
func ParseSignOffRef(s string) (SignOffRef, error) {
	state, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return SignOffRef{}, fmt.Errorf("malformed sign-off reference %q", s)
	}
	switch SignOffState(state) {
	case SignOffPending, SignOffPersisted:
		return SignOffRef{State: SignOffState(state), ID: id}, nil
	}
	return SignOffRef{}, fmt.Errorf("unknown sign-off state %q", state)
}

type SignOff struct {
	Ref            SignOffRef    `json:"ref"`
	WorkerName     string        `json:"name"`
	WorkerCompany  string        `json:"company"`
	WorkerPosition string        `json:"position"`
	SignedAt       time.Time     `json:"signedAt"`
	Method         SignOffMethod `json:"method"`
}

func (s *SignOff) SetField(name, value string) error {
	switch name {
	case "name":
		s.WorkerName = value
	case "company":
		s.WorkerCompany = value
	case "position":
		s.WorkerPosition = value
	default:
		return fmt.Errorf("%w: signOff.%s", ErrUnknownField, name)
	}
	return nil
}

// PartitionSignOffs splits sign-offs into those already stored and those
// still waiting for the parent document to be saved. Order is preserved.
func PartitionSignOffs(all []SignOff) (persisted, pending []SignOff) {
	for _, s := range all {
		if s.Ref.IsPersisted() {
			persisted = append(persisted, s)
		} else {
			pending = append(pending, s)
		}
	}
	return persisted, pending
}

// WorkerSubmission is what the public sign-off page posts.
type WorkerSubmission struct {
	WorkerName     string `json:"workerName" form:"workerName"`
	WorkerCompany  string `json:"workerCompany" form:"workerCompany"`
	WorkerPosition string `json:"workerPosition" form:"workerPosition"`
}

func (w WorkerSubmission) Normalize() WorkerSubmission {
	return WorkerSubmission{
		WorkerName:     strings.TrimSpace(w.WorkerName),
		WorkerCompany:  strings.TrimSpace(w.WorkerCompany),
		WorkerPosition: strings.TrimSpace(w.WorkerPosition),
	}
}

func (w WorkerSubmission) Validate() error {
	var missing []string
	if strings.TrimSpace(w.WorkerName) == "" {
		missing = append(missing, "workerName")
	}
	if strings.TrimSpace(w.WorkerPosition) == "" {
		missing = append(missing, "workerPosition")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
