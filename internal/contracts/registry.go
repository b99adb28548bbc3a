package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Roles is the permission set of one account as reported by the registry.
type Roles struct {
	Account       common.Address `json:"account"`
	IsOwner       bool           `json:"isOwner"`
	IsBeneficiary bool           `json:"isBeneficiary"`
	IsVendor      bool           `json:"isVendor"`
	Category      Category       `json:"category"`
}

type Registry struct {
	*Handle
}

func NewRegistry(address string, backend bind.ContractBackend, opts *bind.TransactOpts) (*Registry, error) {
	h, err := Bind(address, RegistryDescriptor, backend, opts)
	if err != nil {
		return nil, err
	}
	return &Registry{Handle: h}, nil
}

func (r *Registry) Owner(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, r.Handle, "owner")
}

func (r *Registry) IsBeneficiary(ctx context.Context, account common.Address) (bool, error) {
	return callOne[bool](ctx, r.Handle, "isBeneficiary", account)
}

func (r *Registry) IsVendor(ctx context.Context, account common.Address) (bool, error) {
	return callOne[bool](ctx, r.Handle, "isVendor", account)
}

func (r *Registry) VendorCategory(ctx context.Context, account common.Address) (Category, error) {
	c, err := callOne[uint8](ctx, r.Handle, "getVendorCategory", account)
	return Category(c), err
}

// Beneficiaries reads the public beneficiary mapping directly.
func (r *Registry) Beneficiaries(ctx context.Context, account common.Address) (bool, error) {
	return callOne[bool](ctx, r.Handle, "beneficiaries", account)
}

// Vendors reads the public vendor mapping; CategoryNone means not a vendor.
func (r *Registry) Vendors(ctx context.Context, account common.Address) (Category, error) {
	c, err := callOne[uint8](ctx, r.Handle, "vendors", account)
	return Category(c), err
}

func (r *Registry) AddBeneficiary(ctx context.Context, account common.Address) (*types.Transaction, error) {
	return r.Transact(ctx, "addBeneficiary", account)
}

func (r *Registry) AddVendor(ctx context.Context, account common.Address, category Category) (*types.Transaction, error) {
	return r.Transact(ctx, "addVendor", account, uint8(category))
}

// Roles reads every permission flag for account. Nothing is cached here.
func (r *Registry) Roles(ctx context.Context, account common.Address) (Roles, error) {
	owner, err := r.Owner(ctx)
	if err != nil {
		return Roles{}, err
	}
	isBeneficiary, err := r.IsBeneficiary(ctx, account)
	if err != nil {
		return Roles{}, err
	}
	isVendor, err := r.IsVendor(ctx, account)
	if err != nil {
		return Roles{}, err
	}

	category := CategoryNone
	if isVendor {
		if category, err = r.VendorCategory(ctx, account); err != nil {
			return Roles{}, err
		}
	}

	return Roles{
		Account:       account,
		IsOwner:       owner == account,
		IsBeneficiary: isBeneficiary,
		IsVendor:      isVendor,
		Category:      category,
	}, nil
}
