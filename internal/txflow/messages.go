package txflow

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/relieftoken/drt-client/internal/apperr"
)

// revertMessages maps known revert reasons (matched as substrings) to what the user sees.
// Unknown reasons are shown as the node reported them.
var revertMessages = []struct {
	match   string
	message string
}{
	{"Sender not a beneficiary", "You are not registered as a beneficiary"},
	{"Recipient not a vendor", "Recipient is not a registered vendor"},
	{"Insufficient balance", "Insufficient token balance"},
	{"Recipient not a beneficiary", "Recipient is not a registered beneficiary"},
	{"caller is not the owner", "Only the contract owner can perform this action"},
	{"OwnableUnauthorizedAccount", "Only the contract owner can perform this action"},
}

// RevertMessage returns the user-facing text for a revert reason.
func RevertMessage(reason string) string {
	for _, m := range revertMessages {
		if strings.Contains(reason, m.match) {
			return m.message
		}
	}
	if reason == "" {
		return "Transaction reverted"
	}
	return reason
}

// humanize rewrites contract reverts through the message table; other errors pass through.
func humanize(err error) error {
	var revert *apperr.ContractRevertError
	if !errors.As(err, &revert) {
		return err
	}
	return apperr.NewContractRevert(revert.Reason, RevertMessage(revert.Reason), err)
}

func successMessage(action Action, amount string) string {
	switch action {
	case ActionAddBeneficiary:
		return "Beneficiary added successfully!"
	case ActionAddVendor:
		return "Vendor added successfully!"
	case ActionMint:
		return fmt.Sprintf("%s tokens minted successfully!", amount)
	case ActionTransfer:
		return fmt.Sprintf("Successfully sent %s tokens!", amount)
	default:
		return "Transaction confirmed"
	}
}
