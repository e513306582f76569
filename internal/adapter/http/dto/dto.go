package dto

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Persona  string `json:"persona" binding:"required,oneof=STUDENT PARENT INDIVIDUAL COUPLE RETIREE DAILY_WAGER"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// OTPRequestRequest asks for a challenge scoped to an operation.
type OTPRequestRequest struct {
	Purpose string `json:"purpose" binding:"required,oneof=WITHDRAWAL TRANSFER UNLOCK"`
}

// OTPRequestResponse returns the challenge handle. The code itself is
// delivered out of band and never appears here.
type OTPRequestResponse struct {
	ChallengeKey string `json:"challenge_key"`
	ExpiresAt    string `json:"expires_at"`
}

// OTPVerifyRequest is the request body for code verification.
type OTPVerifyRequest struct {
	ChallengeKey string `json:"challenge_key" binding:"required"`
	Code         string `json:"code" binding:"required,min=4,max=10,numeric"`
}

// OTPVerifyResponse is the verification outcome.
type OTPVerifyResponse struct {
	Verified          bool   `json:"verified"`
	Reason            string `json:"reason,omitempty"`
	RemainingAttempts int    `json:"remaining_attempts,omitempty"`
}

// DepositRequest is the request body for a deposit.
type DepositRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=255"`
}

// WithdrawRequest is the request body for a withdrawal. The challenge
// fields authorize the operation.
type WithdrawRequest struct {
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	Description  string `json:"description" binding:"max=255"`
	Essential    bool   `json:"essential"`
	ChallengeKey string `json:"challenge_key" binding:"required"`
	Code         string `json:"code" binding:"required,min=4,max=10,numeric"`
}

// TransferRequest is the request body for an internal bucket transfer.
type TransferRequest struct {
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	FromBucket   string `json:"from_bucket" binding:"omitempty,max=50"`
	ToBucket     string `json:"to_bucket" binding:"omitempty,max=50"`
	Description  string `json:"description" binding:"max=255"`
	ChallengeKey string `json:"challenge_key" binding:"required"`
	Code         string `json:"code" binding:"required,min=4,max=10,numeric"`
}

// LockRequest flips the wallet lock flag. Unlocking requires a
// challenge; locking does not.
type LockRequest struct {
	Locked       bool   `json:"locked"`
	ChallengeKey string `json:"challenge_key"`
	Code         string `json:"code"`
}

// WalletResponse is the balance snapshot.
type WalletResponse struct {
	ID           string           `json:"id"`
	Persona      string           `json:"persona"`
	Balance      int64            `json:"balance"`
	SubBalances  map[string]int64 `json:"sub_balances"`
	TotalSavings int64            `json:"total_savings"`
	SpendLimit   int64            `json:"spend_limit"`
	IsLocked     bool             `json:"is_locked"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	Amount           int64  `json:"amount"`
	FromBucket       string `json:"from_bucket,omitempty"`
	ToBucket         string `json:"to_bucket,omitempty"`
	Description      string `json:"description"`
	Essential        bool   `json:"essential"`
	ResultingBalance int64  `json:"resulting_balance"`
	CreatedAt        string `json:"created_at"`
}

// TransactionListResponse wraps a paginated ledger listing.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// SecurityEventResponse is one audit trail entry.
type SecurityEventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt string         `json:"created_at"`
}
