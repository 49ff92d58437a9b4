package core

import "context"

type (
	// RedemptionConfirmation is the partner's acknowledgement of a redemption.
	RedemptionConfirmation struct {
		PartnerRef     string `json:"partner_ref"`
		ConfirmationID string `json:"confirmation_id"`
	}

	// RedemptionGateway is the external partner service points are redeemed
	// against. Implementations must be idempotent by partnerRef.
	RedemptionGateway interface {
		Redeem(ctx context.Context, userID string, amount int, partnerRef string) (RedemptionConfirmation, error)
	}
)
