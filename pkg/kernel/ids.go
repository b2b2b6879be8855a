package kernel

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

// ReferrerID identifies the account that referred a tenant onto the platform.
type ReferrerID string

func NewReferrerID(id string) ReferrerID { return ReferrerID(id) }
func (r ReferrerID) String() string      { return string(r) }
func (r ReferrerID) IsEmpty() bool       { return string(r) == "" }
