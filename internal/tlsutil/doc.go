// Package tlsutil 为智能体工具的出站 HTTP 请求提供加固的 TLS 客户端（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
