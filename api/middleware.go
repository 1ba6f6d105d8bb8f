package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/recurring-server/internal/logging"
)

// requestLogData attaches a per-request LogData to the context and emits
// the accumulated fields once the request is served. Handlers pick it up
// with logging.GetLogData.
func requestLogData(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logData := logging.NewLogData(log)
		endTimer := logData.AddTiming("duration")

		req = req.WithContext(logging.WithLogData(req.Context(), logData))
		next.ServeHTTP(w, req)

		endTimer()
		logData.AddData("method", req.Method)
		logData.AddData("path", req.URL.Path)
		logData.Log().Info("HttpServer.request")
	})
}
