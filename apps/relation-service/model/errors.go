package model

import (
	"errors"
	"fmt"
)

// 领域错误，使用 errors.Is 判断
var (
	// ErrSelfRelation 好友、关注、屏蔽都不允许指向自己
	ErrSelfRelation = errors.New("self relation is not allowed")
	// ErrBlocked 对方已屏蔽，禁止操作
	ErrBlocked = errors.New("action forbidden by an active block")
	// ErrDuplicate 关系已存在且有效
	ErrDuplicate = errors.New("relation already exists")
	// ErrUniquenessViolation 存储层唯一约束冲突
	ErrUniquenessViolation = errors.New("uniqueness violation")
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrMessageTooLong 附言超过长度限制
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", MaxMessageLength)
)

// 细分的重复错误，均可匹配 ErrDuplicate
var (
	ErrDuplicateRequest = fmt.Errorf("friendship already requested: %w", ErrDuplicate)
	ErrAlreadyInspired  = fmt.Errorf("already inspired: %w", ErrDuplicate)
	ErrAlreadyBlocked   = fmt.Errorf("already blocked: %w", ErrDuplicate)
)
