package ledger

import "export-consortium/internal/domain"

const (
	ContractExport = "export"
	ContractUser   = "user"
)

const (
	FnCreateExport         = "CreateExport"
	FnGetExport            = "GetExport"
	FnGetAllExports        = "GetAllExports"
	FnGetExportsByExporter = "GetExportsByExporter"
	FnGetExportsByStatus   = "GetExportsByStatus"
	FnGetExportHistory     = "GetExportHistory"
	FnUpdateExportStatus   = "UpdateExportStatus"
	FnSubmitExport         = "SubmitExport"
	FnIssueLicense         = "IssueLicense"
	FnAllocateFX           = "AllocateFX"

	FnRegisterUser     = "RegisterUser"
	FnGetUser          = "GetUser"
	FnAuthenticateUser = "AuthenticateUser"
)

// AllowList maps contract name to the set of callable functions.
type AllowList map[string]map[string]bool

func (a AllowList) Allows(contract, function string) bool {
	fns, ok := a[contract]
	if !ok {
		return false
	}
	return fns[function]
}

func set(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

func peerExportFunctions(extra ...string) map[string]bool {
	return set(append([]string{
		FnGetExport, FnGetAllExports, FnGetExportsByStatus, FnUpdateExportStatus, FnGetExportHistory,
	}, extra...)...)
}

// DefaultAllowLists returns the static per-organization allow-lists.
func DefaultAllowLists() map[domain.Role]AllowList {
	peerUser := func() map[string]bool { return set(FnGetUser, FnAuthenticateUser) }
	return map[domain.Role]AllowList{
		domain.RoleExporter: {
			ContractExport: set(FnCreateExport, FnGetExportsByExporter, FnGetExport, FnUpdateExportStatus, FnSubmitExport),
			ContractUser:   set(FnRegisterUser, FnGetUser, FnAuthenticateUser),
		},
		domain.RoleECX:            {ContractExport: peerExportFunctions(), ContractUser: peerUser()},
		domain.RoleECTA:           {ContractExport: peerExportFunctions(FnIssueLicense), ContractUser: peerUser()},
		domain.RoleCommercialBank: {ContractExport: peerExportFunctions(), ContractUser: peerUser()},
		domain.RoleNBE:            {ContractExport: peerExportFunctions(FnAllocateFX), ContractUser: peerUser()},
		domain.RoleCustoms:        {ContractExport: peerExportFunctions(), ContractUser: peerUser()},
		domain.RoleShippingLine:   {ContractExport: peerExportFunctions(), ContractUser: peerUser()},
	}
}
