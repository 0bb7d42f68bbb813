package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/modelboard/webapp/app/dto/http"
	"github.com/modelboard/webapp/app/middleware"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/view"
)

type ListingController struct {
	listings *service.ListingService
}

func NewListingController(listings *service.ListingService) *ListingController {
	return &ListingController{listings: listings}
}

func (c *ListingController) GetIndex(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "index", view.Page{Title: "Home"})
}

func (c *ListingController) GetDashboard(ctx echo.Context) error {
	sess := middleware.SessionFromContext(ctx)
	listings, err := c.listings.List(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.Render(http.StatusOK, "dashboard", view.DashboardPage{
		Page:     view.Page{Title: "Dashboard"},
		Me:       sess.Me,
		Listings: listings,
	})
}

func (c *ListingController) GetNew(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "listing_edit", view.ListingEditPage{
		Page: view.Page{Title: "New listing"},
	})
}

func (c *ListingController) PostCreate(ctx echo.Context) error {
	var form dto.ListingForm
	if err := ctx.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest)
	}

	if errs := form.Validate(); !errs.Valid() {
		return ctx.Render(http.StatusOK, "listing_edit", view.ListingEditPage{
			Page:   view.Page{Title: "New listing"},
			Errors: errs,
		})
	}

	sess := middleware.SessionFromContext(ctx)
	if _, err := c.listings.Create(ctx.Request().Context(), sess, form.Title, form.Description); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, "/dashboard")
}

func (c *ListingController) GetEdit(ctx echo.Context) error {
	sess := middleware.SessionFromContext(ctx)
	listing, err := c.listings.Get(ctx.Request().Context(), sess, ctx.Param("id"))
	if err != nil {
		return err
	}
	if listing == nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return ctx.Render(http.StatusOK, "listing_edit", view.ListingEditPage{
		Page:    view.Page{Title: "Edit listing"},
		Listing: listing,
	})
}

func (c *ListingController) PostUpdate(ctx echo.Context) error {
	var form dto.ListingForm
	if err := ctx.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest)
	}

	sess := middleware.SessionFromContext(ctx)
	id := ctx.Param("id")

	if errs := form.Validate(); !errs.Valid() {
		listing, err := c.listings.Get(ctx.Request().Context(), sess, id)
		if err != nil {
			return err
		}
		return ctx.Render(http.StatusOK, "listing_edit", view.ListingEditPage{
			Page:    view.Page{Title: "Edit listing"},
			Listing: listing,
			Errors:  errs,
		})
	}

	if _, err := c.listings.Update(ctx.Request().Context(), sess, id, form.Title, form.Description); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, "/dashboard")
}

func (c *ListingController) PostDelete(ctx echo.Context) error {
	sess := middleware.SessionFromContext(ctx)
	if err := c.listings.Delete(ctx.Request().Context(), sess, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, "/dashboard")
}
