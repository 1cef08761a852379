package response

import (
	"encoding/json"
	"net/http"

	apperror "github.com/fieldbook/fieldbook/pkg/error"
)

// Envelope is the JSON body of every API response
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, status bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	envelope := Envelope{
		Status:  status,
		Message: message,
		Data:    data,
	}

	_ = json.NewEncoder(w).Encode(envelope)
}

func Success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, true, message, data)
}

func Error(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, false, message, nil)
}

// AppError writes a mapped application error, carrying its detail as data
func AppError(w http.ResponseWriter, err *apperror.AppError) {
	var data interface{}
	if err.Detail != "" {
		data = map[string]string{"code": err.Code, "detail": err.Detail}
	} else {
		data = map[string]string{"code": err.Code}
	}
	WriteJSON(w, err.Status, false, err.Message, data)
}
