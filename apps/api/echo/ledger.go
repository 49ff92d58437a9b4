package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core"
	"github.com/trezcool/coursegen/core/ledger"
)

type ledgerApi struct {
	svc *ledger.Service
}

func registerLedgerAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *ledger.Service) {
	api := ledgerApi{svc: svc}

	pg := g.Group("/points", jwt)
	pg.GET("/balance", api.balance)
	pg.GET("/entries", api.queryEntries)
	pg.POST("/redeem", api.redeem)
}

// RedeemRequest is the payload for POST /points/redeem.
type RedeemRequest struct {
	Amount     int    `json:"amount" validate:"required,min=1"`
	PartnerRef string `json:"partner_ref" validate:"required,min=1,max=120"`
}

func (r *RedeemRequest) Validate() error {
	r.PartnerRef = core.CleanString(r.PartnerRef)
	return core.Validate.Struct(r)
}

// Handlers

func (api *ledgerApi) balance(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	bal, err := api.svc.GetBalance(ctx.Request().Context(), uid)
	if err != nil {
		return errors.Wrap(err, "getting balance")
	}

	return ctx.JSON(http.StatusOK, bal)
}

func (api *ledgerApi) queryEntries(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.QueryEntries(ctx.Request().Context(), uid)
	if err != nil {
		return errors.Wrap(err, "querying entries")
	}

	return ctx.JSON(http.StatusOK, entries)
}

func (api *ledgerApi) redeem(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data RedeemRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RedeemRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	entry, err := api.svc.Redeem(ctx.Request().Context(), uid, data.Amount, data.PartnerRef)
	if err != nil {
		return errors.Wrap(err, "redeeming points")
	}

	return ctx.JSON(http.StatusCreated, entry)
}
