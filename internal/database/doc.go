/*
包 database 负责打开 OpenFlow 的关系型数据库并管理连接池。

# 概述

Open 根据配置选择 GORM 方言（postgres、mysql 或纯 Go 的 sqlite），
随后交给 PoolManager 管理连接池参数与事务重试。Monitor 由调用方
在独立 goroutine 中运行，定期探活并上报连接池快照。
sqlite 为默认驱动，数据文件所在目录会自动创建。

# 核心类型

  - PoolManager：持有 GORM 实例与 sql.DB，提供 Ping、Stats、Monitor、
    RunInTx 与 Close。
  - PoolConfig：连接池参数与事务重试次数。
*/
package database
