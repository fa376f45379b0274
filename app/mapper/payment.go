package mapper

import (
	"github.com/assanpay/gateway/app/entity"
	"github.com/assanpay/gateway/app/types"
)

func TransactionToResponse(item *entity.Transaction, checkoutURL string) *types.TransactionResponse {
	if item == nil {
		return nil
	}

	return &types.TransactionResponse{
		TransactionID:         item.TransactionID,
		MerchantTransactionID: item.MerchantTransactionID,
		Amount:                item.OriginalAmount,
		SettledAmount:         item.SettledAmount,
		Type:                  item.Type,
		Status:                string(item.Status),
		Provider:              item.ProviderDetails.Name,
		CheckoutURL:           checkoutURL,
		Message:               derefString(item.ResponseMessage),
		DateTime:              item.DateTime.UTC(),
	}
}

func DisbursementToResponse(item *entity.Disbursement) *types.DisbursementResponse {
	if item == nil {
		return nil
	}

	return &types.DisbursementResponse{
		SystemOrderID:    item.SystemOrderID,
		MerchantOrderID:  item.MerchantCustomOrderID,
		Amount:           item.TransactionAmount,
		Commission:       item.Commission,
		GST:              item.GST,
		WithholdingTax:   item.WithholdingTax,
		MerchantAmount:   item.MerchantAmount,
		Account:          item.Account,
		Provider:         item.Provider,
		Status:           string(item.Status),
		Message:          derefString(item.ResponseMessage),
		DisbursementDate: item.DisbursementDate.UTC(),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
