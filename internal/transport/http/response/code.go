package response

import "net/http"

// DetailMsg 默认的 detail 文案
var DetailMsg = map[int]string{
	http.StatusBadRequest:            "Bad request.",
	http.StatusUnauthorized:          "Authentication credentials were not provided or are invalid.",
	http.StatusForbidden:             "You do not have permission to perform this action.",
	http.StatusNotFound:              "Not found.",
	http.StatusMethodNotAllowed:      "Method not allowed.",
	http.StatusRequestEntityTooLarge: "Request body too large.",
	http.StatusTooManyRequests:       "Request was throttled.",
	http.StatusInternalServerError:   "internal error",
	http.StatusServiceUnavailable:    "Server busy.",
	http.StatusGatewayTimeout:        "Request timed out.",
}
