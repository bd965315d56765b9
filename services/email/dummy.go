package emailsvc

import (
	"sync"

	"github.com/shule-app/shule/core"
)

// DummyService renders messages synchronously and records them for test
// assertions instead of sending anything.
type DummyService struct {
	conf *core.Config

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*DummyService)(nil)

func NewDummyService(conf *core.Config) *DummyService {
	return &DummyService{conf: conf}
}

func (svc *DummyService) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		if err := msg.Render(svc.conf); err != nil {
			continue
		}
		if msg.HasRecipients() && msg.HasContent() {
			svc.sent = append(svc.sent, *msg)
		}
	}
}

// SentMessages returns a copy of everything sent so far.
func (svc *DummyService) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

// Reset clears the sent log.
func (svc *DummyService) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sent = nil
}
