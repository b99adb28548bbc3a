package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// RegistryABI is the published interface of the beneficiary/vendor registry.
const RegistryABI = `[
 {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"addBeneficiary","stateMutability":"nonpayable","inputs":[{"name":"_beneficiary","type":"address"}],"outputs":[]},
 {"type":"function","name":"addVendor","stateMutability":"nonpayable","inputs":[{"name":"_vendor","type":"address"},{"name":"_category","type":"uint8"}],"outputs":[]},
 {"type":"function","name":"isBeneficiary","stateMutability":"view","inputs":[{"name":"_address","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"isVendor","stateMutability":"view","inputs":[{"name":"_address","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getVendorCategory","stateMutability":"view","inputs":[{"name":"_address","type":"address"}],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"beneficiaries","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"vendors","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"event","name":"BeneficiaryAdded","anonymous":false,"inputs":[{"name":"beneficiary","type":"address","indexed":true}]},
 {"type":"event","name":"VendorAdded","anonymous":false,"inputs":[{"name":"vendor","type":"address","indexed":true},{"name":"category","type":"uint8","indexed":false}]}
]`

// TokenABI is the published interface of the transfer-restricted relief token.
const TokenABI = `[
 {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"_to","type":"address"},{"name":"_amount","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
 {"type":"event","name":"Minted","anonymous":false,"inputs":[{"name":"to","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

// Descriptor names a contract interface and carries its parsed ABI.
type Descriptor struct {
	Name string
	ABI  abi.ABI
}

var (
	RegistryDescriptor = mustDescriptor("registry", RegistryABI)
	TokenDescriptor    = mustDescriptor("token", TokenABI)
)

func ParseDescriptor(name, rawABI string) (Descriptor, error) {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Name: name, ABI: parsed}, nil
}

func mustDescriptor(name, rawABI string) Descriptor {
	d, err := ParseDescriptor(name, rawABI)
	if err != nil {
		panic("contracts: parse " + name + " abi: " + err.Error())
	}
	return d
}
