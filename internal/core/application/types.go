package application

import (
	"github.com/arkade-os/txeditor/internal/core/domain"
)

// View is the presentation state of an editing session, published on every update.
type View struct {
	SessionId   string
	AmountLabel string
	FeeLabel    string
	FeeTarget   string
	Mode        string
	Quote       domain.FeeQuote
	// RoundingText is set only when the rounding indicator is shown.
	RoundingText   string
	Message        string
	SendEnabled    bool
	PreviewEnabled bool
	LockTime       *uint32

	ShowIO            bool
	ShowFeeDetails    bool
	ShowLockTime      bool
	ShowPreviewButton bool
}

// UserErrorMessage is published when a failure must be shown to the user right away.
type UserErrorMessage struct {
	SessionId string
	Code      string
	// Status is the grpc status name of the code.
	Status   string
	Message  string
	Metadata map[string]string `json:",omitempty"`
}
