package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/config"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/database"
	applogger "github.com/Mowalen/ustc-database-learning-platform/pkg/logger"
)

const usage = `用法:
  admin migrate [-config path] [-down N]
  admin createuser [-config path] -username U [-role student|teacher|admin] [-full-name 名字] [-email 邮箱]`

var errUsage = errors.New(usage)

// createUserOpts createuser 子命令参数
type createUserOpts struct {
	configPath string
	username   string
	role       model.Role
	fullName   string
	email      string
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		configPath := fs.String("config", "", "配置文件路径")
		down := fs.Int("down", 0, "回滚的版本数，0 表示执行全部未应用的迁移")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return runMigrate(*configPath, *down, stdout)

	case "createuser":
		opts, err := parseCreateUser(args[1:])
		if err != nil {
			return err
		}
		password, err := readPassword(stdin, stdout)
		if err != nil {
			return err
		}
		return runCreateUser(opts, password, stdout)

	case "-h", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return nil
	}

	return fmt.Errorf("未知子命令 %q\n%s", args[0], usage)
}

func parseCreateUser(args []string) (createUserOpts, error) {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		opts createUserOpts
		role string
	)
	fs.StringVar(&opts.configPath, "config", "", "配置文件路径")
	fs.StringVar(&opts.username, "username", "", "用户名")
	fs.StringVar(&role, "role", "admin", "角色 student | teacher | admin")
	fs.StringVar(&opts.fullName, "full-name", "", "姓名")
	fs.StringVar(&opts.email, "email", "", "邮箱")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.username = strings.TrimSpace(opts.username)
	if opts.username == "" {
		return opts, errors.New("-username 不能为空")
	}
	r, err := model.ParseRole(strings.ToLower(role))
	if err != nil {
		return opts, err
	}
	opts.role = r
	return opts, nil
}

// readPassword 终端下不回显地读取两次密码；非终端（管道）读取一行
func readPassword(stdin io.Reader, stdout io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(stdout, "密码: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", err
		}
		fmt.Fprint(stdout, "确认密码: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errors.New("两次输入的密码不一致")
		}
		return checkPassword(string(first))
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(pw string) (string, error) {
	if len(pw) < 8 {
		return "", errors.New("密码长度不能少于 8 位")
	}
	return pw, nil
}

// ────────────────────── 执行 ──────────────────────

func openDB(configPath string) (*config.Config, *gorm.DB, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log, cfg.App.Name)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.NewDB(&cfg.Database, "warn", logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, logger, nil
}

func runMigrate(configPath string, down int, stdout io.Writer) error {
	_, db, logger, err := openDB(configPath)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if down > 0 {
		if err := database.RollbackMigrations(sqlDB, down, logger); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "已回滚 %d 个版本\n", down)
		return nil
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "迁移完成")
	return nil
}

func runCreateUser(opts createUserOpts, password string, stdout io.Writer) error {
	_, db, logger, err := openDB(opts.configPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	svc := service.NewUserService(repository.NewRepository(db), logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := svc.Create(ctx, buildCreateRequest(opts, password))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "已创建用户 %s（%s, id=%s）\n", user.Username, user.Role, user.ID)
	return nil
}

func buildCreateRequest(opts createUserOpts, password string) *dto.CreateUserRequest {
	req := &dto.CreateUserRequest{
		Username: opts.username,
		Password: password,
		FullName: opts.fullName,
		Role:     int16(opts.role),
	}
	if opts.email != "" {
		email := opts.email
		req.Email = &email
	}
	return req
}
