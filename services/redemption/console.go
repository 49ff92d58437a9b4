package redemptionsvc

import (
	"context"
	"fmt"
	"log"

	"github.com/trezcool/coursegen/core"
)

// consoleGateway confirms every redemption locally; used in debug mode.
type consoleGateway struct{}

var _ core.RedemptionGateway = (*consoleGateway)(nil)

func NewConsoleGateway() core.RedemptionGateway {
	return &consoleGateway{}
}

func (consoleGateway) Redeem(_ context.Context, userID string, amount int, partnerRef string) (core.RedemptionConfirmation, error) {
	log.Printf("redemption: user=%s amount=%d ref=%s", userID, amount, partnerRef)
	return core.RedemptionConfirmation{
		PartnerRef:     partnerRef,
		ConfirmationID: fmt.Sprintf("console-%s", partnerRef),
	}, nil
}
