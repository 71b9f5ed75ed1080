package service

import (
	"context"
	"errors"
	"fmt"

	"tokenpool/internal/model"
	"tokenpool/internal/repository"
	"tokenpool/pkg/idgen"

	"gorm.io/gorm"
)

// AccountService 用户账户（外部用户体系在本引擎内的窄接口）
type AccountService struct {
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	db              *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		db:              db,
	}
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

// Recharge 充值（简化版，实际应该走支付渠道）
func (s *AccountService) Recharge(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return errors.New("充值金额必须大于0")
	}

	account, err := s.accountRepo.GetOrCreate(ctx, userID, fmt.Sprintf("user-%d", userID))
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Increase(ctx, tx, userID, amount); err != nil {
			return err
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Amount:        amount,
			Type:          model.TransactionTypeRecharge,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + amount,
			Remark:        "充值",
		}
		return s.transactionRepo.Create(ctx, tx, transaction)
	})
}

func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
