package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.GET("/topics", api.queryTopics)

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.POST("/feedback", api.submitFeedback)
	dg.GET("/feedback", api.queryFeedback)
	dg.POST("/approve", api.approve)
	dg.POST("/start", api.start)
	dg.GET("/chapters/:position", api.retrieveChapter)
	dg.POST("/chapters/:position/consumed", api.consumeChapter)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	crs, err := api.svc.Submit(ctx.Request().Context(), uid, data)
	if err != nil {
		return errors.Wrap(err, "submitting course")
	}

	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	courses, err := api.svc.QueryByOwner(ctx.Request().Context(), uid)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}

	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) queryTopics(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, course.Topics)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.GetByID(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.Delete(ctx.Request().Context(), uid, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) submitFeedback(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.Feedback
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Feedback")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	crs, err := api.svc.SubmitFeedback(ctx.Request().Context(), uid, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting feedback")
	}

	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) queryFeedback(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	rounds, err := api.svc.FeedbackRounds(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying feedback rounds")
	}

	return ctx.JSON(http.StatusOK, rounds)
}

func (api *courseApi) approve(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.Approve(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving course")
	}

	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) start(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.Start(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting course")
	}

	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) retrieveChapter(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	pos, err := chapterPosition(ctx)
	if err != nil {
		return err
	}

	content, err := api.svc.RequestChapter(ctx.Request().Context(), uid, ctx.Param("id"), pos)
	if err != nil {
		return errors.Wrap(err, "requesting chapter")
	}

	return ctx.JSON(http.StatusOK, content)
}

func (api *courseApi) consumeChapter(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.Subject == "" {
		return errors.New("token subject is empty")
	}
	pos, err := chapterPosition(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.MarkChapterConsumed(ctx.Request().Context(), claims.Subject, ctx.Param("id"), pos, claims.Email)
	if err != nil {
		return errors.Wrap(err, "consuming chapter")
	}

	return ctx.JSON(http.StatusOK, crs)
}

func chapterPosition(ctx echo.Context) (int, error) {
	pos, err := strconv.Atoi(ctx.Param("position"))
	if err != nil || pos < 1 {
		return 0, errHttpNotFound
	}
	return pos, nil
}
