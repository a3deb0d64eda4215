package usecase

import (
	"context"
	"crypto/md5"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"newshub/domain/dto"
	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/configuration"
	"newshub/infrastructure/logger"
	"newshub/infrastructure/utils"
)

type IUserUsecase interface {
	Login(ctx context.Context, req model.ReqLogin) dto.Res
	Register(ctx context.Context, req model.ReqRegister) dto.Res
}

type userUsecase struct {
	userRepository repository.IUser
}

func NewUserUsecase(userRepository repository.IUser) IUserUsecase {
	return &userUsecase{userRepository: userRepository}
}

func (userUsecase *userUsecase) Login(ctx context.Context, req model.ReqLogin) dto.Res {
	var res dto.Res
	res.ResponseCode = "401"
	res.ResponseMessage = "Unauthorized"

	user, err := userUsecase.userRepository.GetByUserName(ctx, req.UserName)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while getting user")
		return res
	}
	if user.ID == 0 {
		res.ResponseMessage = "User not found"
		return res
	}

	hashed := fmt.Sprintf("%x", md5.Sum([]byte(req.Password)))
	if user.Password != hashed {
		res.ResponseMessage = "Invalid credentials"
		return res
	}

	now := utils.GetCurrentTime()
	payload := map[string]interface{}{
		"iss":       strconv.Itoa(user.ID),
		"user_name": user.UserName,
		"iat":       now.Unix(),
		"exp":       now.Add(24 * time.Hour).Unix(),
	}
	token, err := utils.GenerateToken(payload, configuration.C.App.SecretKey)
	if err != nil {
		res.ResponseCode = "500"
		res.ResponseMessage = "Internal Server Error"
		return res
	}

	res.ResponseCode = "200"
	res.ResponseMessage = "Success"
	res.Data = map[string]interface{}{
		"token":     token,
		"user_name": user.UserName,
	}
	return res
}

func (userUsecase *userUsecase) Register(ctx context.Context, req model.ReqRegister) dto.Res {
	var res dto.Res
	res.ResponseCode = "500"
	res.ResponseMessage = "Internal Server Error"

	existing, err := userUsecase.userRepository.GetByUserName(ctx, req.UserName)
	if err != nil && err != sql.ErrNoRows {
		logger.GetLogger().WithField("error", err).Error("Error while checking user name")
		return res
	}
	if existing.ID != 0 {
		res.ResponseCode = "409"
		res.ResponseMessage = "User name already taken"
		return res
	}

	user := model.User{
		Name:     req.Name,
		UserName: req.UserName,
		Password: req.Password,
	}
	if err := userUsecase.userRepository.CreateUser(ctx, user); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while creating user")
		return res
	}

	res.ResponseCode = "201"
	res.ResponseMessage = "Created"
	return res
}
