// @title           ReefKH HTTP Service API
// @version         1.0
// @description     Telemetry and control backend for networked KH monitoring and dosing devices

// @contact.name   API Support
// @contact.email  support@reefkh.local

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Enter the token with the `Bearer: ` prefix
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/internal/infrastructure/database"
	"reefkh-http-service/models"
	"reefkh-http-service/routes"
)

func main() {
	// 初始化日志配置
	if err := config.SetupLogger(); err != nil {
		fmt.Printf("初始化日志配置失败: %v\n", err)
		os.Exit(1)
	}

	// 加载.env文件
	if err := godotenv.Load(); err != nil {
		config.Warning("无法加载.env文件: %v", err)
		// 即使加载失败也继续执行，可能环境变量已经通过其他方式设置
	} else {
		config.Info("成功加载.env文件")
	}

	// 获取配置
	cfg := config.GetConfig()

	// 连接数据库
	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		log.Fatalf("无法连接数据库: %v", err)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 根据配置执行数据库迁移
	if cfg.DBMigrationMode == "drop" {
		log.Println("警告: 在drop模式下运行，将删除并重建所有表")
		if err := dropAndRecreateTables(db); err != nil {
			log.Fatalf("删除并重建表失败: %v", err)
		}
	} else {
		// 默认AutoMigrate，只会添加新列和新表，不会删除或修改列
		if err := autoMigrate(db); err != nil {
			log.Fatalf("自动迁移失败: %v", err)
		}
	}

	// 初始化路由与服务容器
	r, serviceContainer := routes.SetupRouter(db, cfg)

	// 启动离线哨兵等后台任务
	serviceContainer.StartBackgroundTasks()

	// 监听退出信号，停掉后台任务后再退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		config.Info("收到退出信号，正在停止后台任务...")
		serviceContainer.StopBackgroundTasks()
		os.Exit(0)
	}()

	// 启动服务器
	port := cfg.ServerPort
	config.Info("服务器启动在: http://localhost:%s", port)
	if err := r.Run(":" + port); err != nil {
		config.Error("启动服务器失败: %v", err)
		os.Exit(1)
	}
}

// autoMigrate 自动迁移所有模型（只添加新列和新表）
func autoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.Measurement{},
		&models.Command{},
		&models.DeviceHealth{},
	)

	if err != nil {
		return err
	}

	fmt.Println("Database migration completed")
	return nil
}

// dropAndRecreateTables 删除并重建所有表
func dropAndRecreateTables(db *gorm.DB) error {
	// 警告: 这将删除所有数据
	log.Println("警告: 正在删除并重建所有表，所有数据将丢失")

	// 禁用外键检查以允许删除表
	db.Exec("SET FOREIGN_KEY_CHECKS = 0")
	defer db.Exec("SET FOREIGN_KEY_CHECKS = 1")

	// 获取所有表名
	var tables []string
	err := db.Raw("SHOW TABLES").Scan(&tables).Error
	if err != nil {
		return fmt.Errorf("failed to get table names: %w", err)
	}

	// 删除所有表
	for _, table := range tables {
		log.Printf("正在删除表: %s", table)
		err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)).Error
		if err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	// 重新创建所有表
	log.Println("正在重新创建所有表")
	return autoMigrate(db)
}
