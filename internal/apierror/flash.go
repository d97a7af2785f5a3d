package apierror

import (
	"context"

	"github.com/meridian-bank/meridian-web/internal/shared"
)

// FlashNotifier queues notifications as session flash messages, shown on the
// next rendered page. Requests without a session are ignored.
type FlashNotifier struct{}

// Notify implements Notifier.
func (FlashNotifier) Notify(ctx context.Context, n Notification) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return
	}
	sess.AddFlash(shared.FlashMessage{Kind: string(n.Severity), Message: n.Message})
}
