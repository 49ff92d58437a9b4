package redemptionsvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/coursegen/core"
)

const redeemEndpoint = "/v1/redemptions"

// httpGateway talks to the partner redemption API. The partner deduplicates
// by partner_ref, so retrying a request is safe.
type httpGateway struct {
	baseURL string
	key     string
}

var _ core.RedemptionGateway = (*httpGateway)(nil)

func NewHTTPGateway(conf *core.Config) *httpGateway {
	return &httpGateway{
		baseURL: conf.Redemption.BaseURL,
		key:     conf.Redemption.ApiKey,
	}
}

type redeemRequest struct {
	UserID     string `json:"user_id"`
	Amount     int    `json:"amount"`
	PartnerRef string `json:"partner_ref"`
}

func (gw *httpGateway) Redeem(ctx context.Context, userID string, amount int, partnerRef string) (core.RedemptionConfirmation, error) {
	body, err := json.Marshal(redeemRequest{UserID: userID, Amount: amount, PartnerRef: partnerRef})
	if err != nil {
		return core.RedemptionConfirmation{}, errors.Wrap(err, "encoding redemption request")
	}

	req := rest.Request{
		Method:  rest.Post,
		BaseURL: gw.baseURL + redeemEndpoint,
		Headers: map[string]string{
			"Authorization": "Bearer " + gw.key,
			"Content-Type":  "application/json",
		},
		Body: body,
	}
	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return core.RedemptionConfirmation{}, errors.Wrap(err, "calling redemption gateway")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return core.RedemptionConfirmation{}, errors.Errorf("redemption gateway - status: %d - Body: %s", res.StatusCode, res.Body)
	}

	var conf core.RedemptionConfirmation
	if err = json.Unmarshal([]byte(res.Body), &conf); err != nil {
		return core.RedemptionConfirmation{}, errors.Wrap(err, "decoding redemption confirmation")
	}
	return conf, nil
}
