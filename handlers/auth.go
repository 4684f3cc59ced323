package handlers

import (
	"net/http"

	"storefront-payment-api/middleware"
	"storefront-payment-api/models"
	"storefront-payment-api/utils"
)

// GetCustomerInfo returns the customer the bearer token was issued for.
func GetCustomerInfo(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.GetCustomerFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Customer not found in context")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Customer information retrieved",
		Data:    customer,
	})
}
