package gateway

import (
	"context"
	"fmt"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
)

// RequestPermissions initialises the platform health service and asks the
// user for the read/write permissions. It does not wait for the answer; the
// caller retries the read once the user has responded.
func (g *Gateway) RequestPermissions(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requestPermissions(ctx)
}

func (g *Gateway) requestPermissions(ctx context.Context) error {
	if err := g.bridge.Ready(ctx); err != nil {
		g.logger.WithError(err).Error("Bridge context is invalid")
		return err
	}

	g.logger.Info("Initializing health service")
	raw, err := g.call(ctx, bridge.MethodInit)
	if err != nil {
		g.logger.WithError(err).Error("Health service init call failed")
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	res := bridge.DecodeInit(raw)
	switch res.Status {
	case bridge.StatusOK:
	case bridge.StatusNotInstalled:
		g.logger.Error("Health service is not installed, install it from the store")
		return ErrNotInstalled
	case bridge.StatusVersionTooOld:
		g.logger.Error("Platform version too old for the health service")
		return ErrVersionTooOld
	case bridge.StatusUpdateRequired:
		// The service may still work; carry on.
		g.logger.Warn("Health service needs an update")
	default:
		g.logger.WithField("reply", res.Detail).Error("Health service initialisation failed")
		return fmt.Errorf("%w: %s", ErrInitFailed, res.Detail)
	}

	current, err := g.call(ctx, bridge.MethodCheckPermissions)
	if err != nil {
		g.logger.WithError(err).Warn("Permission check failed")
	} else {
		g.logger.WithField("permissions", current).Info("Current permission state")
	}

	g.logger.Info("Requesting permissions")
	reply, err := g.call(ctx, bridge.MethodRequestPermissions)
	if err != nil {
		g.logger.WithError(err).Error("Permission request failed")
		return fmt.Errorf("permission request: %w", err)
	}
	g.logger.WithField("reply", reply).Info("Permission request issued, grant permissions and refresh")
	return nil
}
