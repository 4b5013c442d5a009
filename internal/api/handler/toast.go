package handler

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

const (
	toastCookie = "toast"
	toastMaxAge = 60
)

// setToast queues a one-shot message shown by the next page render.
func setToast(c echo.Context, msg string) {
	c.SetCookie(&http.Cookie{
		Name:     toastCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		MaxAge:   toastMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popToast returns the queued message, if any, and expires it.
func popToast(c echo.Context) string {
	ck, err := c.Cookie(toastCookie)
	if err != nil || ck.Value == "" {
		return ""
	}
	c.SetCookie(&http.Cookie{Name: toastCookie, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(ck.Value)
	if err != nil {
		return ""
	}
	return msg
}
